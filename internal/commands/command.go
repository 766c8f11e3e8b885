// Package commands parses chat commands and runs them against the task
// repository.
package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type Type string

const (
	TypeAdd            Type = "add"
	TypeList           Type = "list"
	TypeDeadline       Type = "deadline"
	TypeComplete       Type = "complete"
	TypeUncomplete     Type = "uncomplete"
	TypeRemove         Type = "remove"
	TypeClear          Type = "clear"
	TypeClearAll       Type = "clearall"
	TypeRemindMe       Type = "remindme"
	TypeReminders      Type = "reminders"
	TypeDelReminder    Type = "delreminder"
	TypeClearReminders Type = "clearreminders"
	TypeHelp           Type = "help"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// separator splits content from its time expression in add and remindme.
const separator = " | "

type AddArgs struct {
	Content  string
	Deadline string
}

type IDArgs struct {
	ID int
}

type DeadlineArgs struct {
	ID   int
	When string
}

type RemindArgs struct {
	Message string
	When    string
}

type Command struct {
	Type     Type
	Raw      string
	Add      *AddArgs
	Target   *IDArgs
	Deadline *DeadlineArgs
	Remind   *RemindArgs
}

// Prefixes accepted in front of a command name. A bare name is accepted too.
var Prefixes = []string{"!", "/"}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	for _, p := range Prefixes {
		if strings.HasPrefix(raw, p) {
			raw = strings.TrimSpace(strings.TrimPrefix(raw, p))
			break
		}
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	head, rest := splitHead(raw)
	head = strings.ToLower(head)

	switch t := Type(head); t {
	case TypeAdd:
		return parseAdd(input, rest)
	case TypeDeadline:
		return parseDeadline(input, rest)
	case TypeRemindMe:
		return parseRemindMe(input, rest)
	case TypeComplete, TypeUncomplete, TypeRemove, TypeDelReminder:
		return parseTarget(input, t, rest)
	case TypeList, TypeClear, TypeClearAll, TypeReminders, TypeClearReminders, TypeHelp:
		return Command{Type: t, Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func splitHead(raw string) (string, string) {
	idx := strings.IndexFunc(raw, unicode.IsSpace)
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], strings.TrimSpace(raw[idx:])
}

func parseAdd(raw, rest string) (Command, error) {
	content, deadline, _ := strings.Cut(" "+rest, separator)
	content = strings.TrimSpace(content)
	if content == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a task"}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Content: content, Deadline: strings.TrimSpace(deadline)}}, nil
}

func parseDeadline(raw, rest string) (Command, error) {
	idText, when := splitHead(rest)
	if idText == "" || when == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "deadline requires a task id and a time"}
	}
	id, err := parseID(idText)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeDeadline, Raw: raw, Deadline: &DeadlineArgs{ID: id, When: when}}, nil
}

func parseRemindMe(raw, rest string) (Command, error) {
	message, when, ok := strings.Cut(" "+rest, separator)
	if !ok {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "usage: !remindme <message> | <time>"}
	}
	message = strings.TrimSpace(message)
	when = strings.TrimSpace(when)
	if message == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "remindme requires a message"}
	}
	if when == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "remindme requires a time"}
	}
	return Command{Type: TypeRemindMe, Raw: raw, Remind: &RemindArgs{Message: message, When: when}}, nil
}

func parseTarget(raw string, t Type, rest string) (Command, error) {
	idText, extra := splitHead(rest)
	if idText == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires an id", t)}
	}
	if extra != "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes a single id", t)}
	}
	id, err := parseID(idText)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: t, Raw: raw, Target: &IDArgs{ID: id}}, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id <= 0 {
		return 0, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid id: %s", s)}
	}
	return id, nil
}
