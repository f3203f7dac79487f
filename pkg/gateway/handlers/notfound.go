package handlers

import (
	"net/http"

	"github.com/dostvoice/relay/pkg/gateway/apierror"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	apierror.WriteJSON(w, apierror.New(apierror.CodeNotFound, http.StatusNotFound,
		"Endpoint not found"), false)
}
