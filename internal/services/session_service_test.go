package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catkeep/authcore/internal/auth"
	"github.com/catkeep/authcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Establish(t *testing.T) {
	var upserted *models.Session
	sessions := &MockSessionRepository{
		UpsertFunc: func(ctx context.Context, session *models.Session) (*models.Session, error) {
			session.ID = "sess-1"
			upserted = session
			return session, nil
		},
	}
	svc := NewSessionService(sessions, 90*24*time.Hour, testLogger())

	session, err := svc.Establish(context.Background(), "token-1", "user-1", models.SessionMeta{
		IPAddress:  "10.0.0.1",
		TLSVersion: "TLS 1.3",
	})
	require.NoError(t, err)

	assert.Equal(t, auth.HashToken("token-1"), upserted.TokenHash)
	assert.Equal(t, "10.0.0.1", upserted.IPAddress)
	assert.Equal(t, "TLS 1.3", upserted.TLSVersion)
	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), session.ExpiresAt, time.Minute)
}

func TestSessionService_Touch_SwallowsErrors(t *testing.T) {
	sessions := &MockSessionRepository{
		TouchFunc: func(ctx context.Context, tokenHash string) error {
			return errors.New("db down")
		},
	}
	svc := NewSessionService(sessions, time.Hour, testLogger())

	// Fire-and-forget: must not panic or propagate.
	svc.Touch(context.Background(), "token-1")
	svc.Touch(context.Background(), "")
}

func TestSessionService_Terminate(t *testing.T) {
	var deactivated string
	sessions := &MockSessionRepository{
		DeactivateFunc: func(ctx context.Context, tokenHash string) error {
			deactivated = tokenHash
			return nil
		},
	}
	svc := NewSessionService(sessions, time.Hour, testLogger())

	require.NoError(t, svc.Terminate(context.Background(), "token-1"))
	assert.Equal(t, auth.HashToken("token-1"), deactivated)

	// Terminating an absent token is a no-op, not an error.
	require.NoError(t, svc.Terminate(context.Background(), ""))
}

func TestSessionService_TerminateAllForUser(t *testing.T) {
	var target string
	sessions := &MockSessionRepository{
		DeactivateAllForUserFunc: func(ctx context.Context, userID string) (int64, error) {
			target = userID
			return 3, nil
		},
	}
	svc := NewSessionService(sessions, time.Hour, testLogger())

	require.NoError(t, svc.TerminateAllForUser(context.Background(), "user-1"))
	assert.Equal(t, "user-1", target)
}
