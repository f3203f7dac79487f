package tts

// Voice preference names accepted from clients, mapped to concrete
// ElevenLabs voice identifiers.
var voiceTable = map[string]string{
	"hindi_male":   "pNInz6obpgDQGcFmaJgB", // Adam
	"hindi_female": "EXAVITQu4vr4xnSDxMaL", // Bella
	"multilingual": "pNInz6obpgDQGcFmaJgB", // Adam (good for Hindi)
}

// DefaultVoicePreference is used when the caller sends no preference.
const DefaultVoicePreference = "multilingual"

// VoiceID maps a caller voice preference to a concrete voice identifier.
// Unknown or empty preferences fall back to the default voice so a stale
// client setting never fails a turn.
func VoiceID(preference string) string {
	if id, ok := voiceTable[preference]; ok {
		return id
	}
	return voiceTable[DefaultVoicePreference]
}
