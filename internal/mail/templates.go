// AngelaMos | 2026
// templates.go

package mail

import "fmt"

const (
	TemplateValidation = "validation"
	TemplateRecovery   = "recovery"
)

func ValidationCode(to, name, code string) Message {
	return Message{
		To:       to,
		Subject:  "Validate your TFG Registry account",
		Template: TemplateValidation,
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour validation code is %s.\n\n"+
				"Enter it in the application to activate your account.\n",
			name, code,
		),
	}
}

func RecoveryCode(to, name, code string) Message {
	return Message{
		To:       to,
		Subject:  "TFG Registry password recovery",
		Template: TemplateRecovery,
		Body: fmt.Sprintf(
			"Hello %s,\n\nUse the code %s to choose a new password.\n\n"+
				"If you did not ask for this, ignore this message.\n",
			name, code,
		),
	}
}
