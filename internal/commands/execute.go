package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add            func(AddArgs) (Result, error)
	List           func() (Result, error)
	Deadline       func(DeadlineArgs) (Result, error)
	Complete       func(IDArgs) (Result, error)
	Uncomplete     func(IDArgs) (Result, error)
	Remove         func(IDArgs) (Result, error)
	Clear          func() (Result, error)
	ClearAll       func() (Result, error)
	RemindMe       func(RemindArgs) (Result, error)
	Reminders      func() (Result, error)
	DelReminder    func(IDArgs) (Result, error)
	ClearReminders func() (Result, error)
	Help           func() (Result, error)
}

func Execute(cmd Command, h Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if h.Add == nil {
			return missing(cmd.Type)
		}
		return h.Add(*cmd.Add)
	case TypeDeadline:
		if h.Deadline == nil {
			return missing(cmd.Type)
		}
		return h.Deadline(*cmd.Deadline)
	case TypeRemindMe:
		if h.RemindMe == nil {
			return missing(cmd.Type)
		}
		return h.RemindMe(*cmd.Remind)
	case TypeComplete:
		return runTarget(cmd, h.Complete)
	case TypeUncomplete:
		return runTarget(cmd, h.Uncomplete)
	case TypeRemove:
		return runTarget(cmd, h.Remove)
	case TypeDelReminder:
		return runTarget(cmd, h.DelReminder)
	case TypeList:
		return runPlain(cmd, h.List)
	case TypeClear:
		return runPlain(cmd, h.Clear)
	case TypeClearAll:
		return runPlain(cmd, h.ClearAll)
	case TypeReminders:
		return runPlain(cmd, h.Reminders)
	case TypeClearReminders:
		return runPlain(cmd, h.ClearReminders)
	case TypeHelp:
		return runPlain(cmd, h.Help)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func runTarget(cmd Command, fn func(IDArgs) (Result, error)) (Result, error) {
	if fn == nil {
		return missing(cmd.Type)
	}
	return fn(*cmd.Target)
}

func runPlain(cmd Command, fn func() (Result, error)) (Result, error) {
	if fn == nil {
		return missing(cmd.Type)
	}
	return fn()
}

func missing(t Type) (Result, error) {
	return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
