package domain

import "github.com/pkg/errors"

var (
	ErrUnauthorized = errors.New("unauthorized")

	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrNotSubscribed     = errors.New("not subscribed")
	ErrAlreadyPassed     = errors.New("already passed")
	ErrVacancyDisabled   = errors.New("vacancy disabled")
	ErrWrongGate         = errors.New("wrong gate")
	ErrDuplicateFact     = errors.New("duplicate fact")
	ErrSelfConfirmation  = errors.New("self confirmation")
	ErrUnverified        = errors.New("unverified")
	ErrAlreadyConfirmed  = errors.New("already confirmed")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrStageInUse        = errors.New("stage in use")

	ErrIndexOutOfRange = errors.New("index out of range")
	ErrPipelineFull    = errors.New("pipeline full")

	ErrInsufficientPool      = errors.New("insufficient pool")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	ErrInvalidArgument = errors.New("invalid argument")
)

// Category groups errors the way callers react to them.
type Category string

const (
	CategoryAuthorization     Category = "authorization"
	CategoryStatePrecondition Category = "state_precondition"
	CategoryBounds            Category = "bounds"
	CategoryResource          Category = "resource"
	CategoryValidation        Category = "validation"
	CategoryInternal          Category = "internal"
)

var categories = []struct {
	err      error
	code     string
	category Category
}{
	{ErrUnauthorized, "unauthorized", CategoryAuthorization},
	{ErrAlreadySubscribed, "already_subscribed", CategoryStatePrecondition},
	{ErrNotSubscribed, "not_subscribed", CategoryStatePrecondition},
	{ErrAlreadyPassed, "already_passed", CategoryStatePrecondition},
	{ErrVacancyDisabled, "vacancy_disabled", CategoryStatePrecondition},
	{ErrWrongGate, "wrong_gate", CategoryStatePrecondition},
	{ErrDuplicateFact, "duplicate_fact", CategoryStatePrecondition},
	{ErrSelfConfirmation, "self_confirmation", CategoryStatePrecondition},
	{ErrUnverified, "unverified", CategoryStatePrecondition},
	{ErrAlreadyConfirmed, "already_confirmed", CategoryStatePrecondition},
	{ErrNotFound, "not_found", CategoryStatePrecondition},
	{ErrAlreadyExists, "already_exists", CategoryStatePrecondition},
	{ErrStageInUse, "stage_in_use", CategoryStatePrecondition},
	{ErrIndexOutOfRange, "index_out_of_range", CategoryBounds},
	{ErrPipelineFull, "pipeline_full", CategoryBounds},
	{ErrInsufficientPool, "insufficient_pool", CategoryResource},
	{ErrInsufficientBalance, "insufficient_balance", CategoryResource},
	{ErrInsufficientAllowance, "insufficient_allowance", CategoryResource},
	{ErrInvalidArgument, "invalid_argument", CategoryValidation},
}

// CategoryOf reports the category of err, or CategoryInternal for errors
// outside the known set.
func CategoryOf(err error) Category {
	_, c := classify(err)
	return c
}

// CodeOf returns the snake_case name of the sentinel wrapped by err.
func CodeOf(err error) string {
	code, _ := classify(err)
	return code
}

func classify(err error) (string, Category) {
	if err == nil {
		return "", ""
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.code, c.category
		}
	}
	return "internal_error", CategoryInternal
}
