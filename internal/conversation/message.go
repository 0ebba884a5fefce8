// Package conversation holds the state of one chat view: the ordered message
// list, the loading flag and the reveal animation of the latest reply.
package conversation

import "fmt"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleThinking  Role = "thinking"
	RoleTyping    Role = "typing"
)

// Transient reports whether entries with this role are placeholders that get
// replaced once the pending step completes.
func (r Role) Transient() bool {
	return r == RoleThinking || r == RoleTyping
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PresetQuestions are offered by every view as one-click submissions.
var PresetQuestions = []string{
	"Headache", "Ask", "Treat", "Talk Therapy", "Checkup",
	"Coaches", "Dentist", "Specialists", "Alternative", "Interpret",
	"Health Score", "Tools",
}

const DefaultApology = "Sorry, I'm having trouble answering right now. Please try again in a moment."

func Greeting(assistantName string) string {
	return fmt.Sprintf("Hi! I'm %s, your AI doctor trained by human doctors. "+
		"What health issue do you want to work on today? You can say something like "+
		"'sinus pressure' or 'I have a sore throat.' Let's figure this out together!", assistantName)
}
