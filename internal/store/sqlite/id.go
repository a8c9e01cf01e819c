package sqlite

import "github.com/google/uuid"

func newConversationID() string {
	return uuid.NewString()
}
