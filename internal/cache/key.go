package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ashureev/fitcoach/internal/domain"
)

const (
	priorMessagesInKey = 2
	workoutPrefixLen   = 50
)

// KeyInput carries everything a cache key is derived from.
type KeyInput struct {
	// Namespace scopes keys to one conversation (user and session).
	Namespace     string
	Message       string
	History       []domain.ChatMessage
	Goals         string
	WorkoutDigest string
}

// Key hashes the namespace, the normalized message, the content of the last
// two prior messages and a context fingerprint. The same question asked in a
// different conversational state yields a different key.
func Key(in KeyInput) string {
	var prior strings.Builder
	start := max(0, len(in.History)-priorMessagesInKey)
	for _, m := range in.History[start:] {
		prior.WriteString(m.Content)
	}

	workout := []rune(in.WorkoutDigest)
	if len(workout) > workoutPrefixLen {
		workout = workout[:workoutPrefixLen]
	}

	h := sha256.New()
	for _, part := range []string{
		in.Namespace,
		normalizeMessage(in.Message),
		prior.String(),
		in.Goals + "|" + string(workout),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeMessage(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
