package cog

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrorKind classifies errors that are reported back to the invoking user instead of being logged as failures.
type ErrorKind int

const (
	KindInput ErrorKind = iota
	KindPermission
	KindNotFound
	KindTimeout
	KindCooldown
)

// UserError is an error whose message is meant for the user that triggered it.
type UserError struct {
	Kind    ErrorKind
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) UserMessage() string {
	return e.Message
}

func InputError(format string, a ...any) error {
	return &UserError{Kind: KindInput, Message: fmt.Sprintf(format, a...)}
}

func PermissionError(format string, a ...any) error {
	return &UserError{Kind: KindPermission, Message: fmt.Sprintf(format, a...)}
}

func NotFoundError(format string, a ...any) error {
	return &UserError{Kind: KindNotFound, Message: fmt.Sprintf(format, a...)}
}

// UserMessage returns the user facing message carried by err, if any.
func UserMessage(err error) (string, bool) {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage(), true
	}
	return "", false
}

// IsKind reports whether err is a *UserError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ue *UserError
	return errors.As(err, &ue) && ue.Kind == kind
}

func restError(err error) (*discordgo.RESTError, bool) {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		return restErr, true
	}
	return nil, false
}

// IsForbidden reports whether err is Discord refusing an action for lack of permissions.
func IsForbidden(err error) bool {
	restErr, ok := restError(err)
	if !ok {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether err is Discord reporting that the target (message, channel, member, role) is gone.
func IsNotFound(err error) bool {
	restErr, ok := restError(err)
	if !ok {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownRole, discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownGuild:
			return true
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// ErrorFormatter renders unexpected command failures for the user. It is resolved once at startup and shared by
// every plugin.
type ErrorFormatter interface {
	FormatError(command string, err error) string
}

// DefaultErrorFormatter is the stock failure message.
type DefaultErrorFormatter struct{}

func (DefaultErrorFormatter) FormatError(command string, err error) string {
	return fmt.Sprintf("Error in command `%s`. Check your console or logs for details.\n```%v```", command, err)
}
