package session

import "fmt"

// Broker destinations. The group topic fans out to every connected user;
// the private queue is scoped to one username.
const (
	TopicGroup = "/topic/group"

	DestSendMessage = "/app/chat.send"
	DestTyping      = "/app/chat.typing"
	DestAnnounce    = "/app/chat.adduser"
	DestPrivate     = "/app/chat.private"
)

// PrivateQueue returns the per-user destination for direct messages.
func PrivateQueue(username string) string {
	return fmt.Sprintf("/user/%s/queue/private", username)
}
