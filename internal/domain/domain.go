package domain

import "strings"

// MemberStatus is the self-declared job search status of a member.
type MemberStatus int

const (
	StatusUnset MemberStatus = iota
	StatusInSearchOfWork
	StatusClosed
)

func (s MemberStatus) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusInSearchOfWork:
		return "in_search_of_work"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseMemberStatus accepts either the numeric or the named form.
func ParseMemberStatus(in string) (MemberStatus, bool) {
	switch in {
	case "0", "unset":
		return StatusUnset, true
	case "1", "in_search_of_work":
		return StatusInSearchOfWork, true
	case "2", "closed":
		return StatusClosed, true
	}
	return StatusUnset, false
}

func (s MemberStatus) Valid() bool {
	return s >= StatusUnset && s <= StatusClosed
}

type Member struct {
	ID        string       `json:"id"`
	Status    MemberStatus `json:"status"`
	Verified  bool         `json:"verified"`
	CreatedAt string       `json:"created_at" format:"date-time"`
}

type Fact struct {
	SubjectID         string `json:"subject_id"`
	ID                string `json:"id"`
	AuthorID          string `json:"author_id"`
	Payload           string `json:"payload"`
	ConfirmationCount uint64 `json:"confirmation_count"`
	CreatedAt         string `json:"created_at" format:"date-time"`
}

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Account   string `json:"account"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

const tenantAccountPrefix = "tenant:"

// TenantAccount is the token account that funds a tenant's vacancies.
func TenantAccount(tenantID string) string {
	return tenantAccountPrefix + tenantID
}

// IsTenantAccount reports whether id names a tenant escrow account. Such ids
// are never valid caller identities.
func IsTenantAccount(id string) bool {
	return strings.HasPrefix(id, tenantAccountPrefix)
}

type TenantRole string

const (
	RoleOwner        TenantRole = "owner"
	RoleCollaborator TenantRole = "collaborator"
)

type Vacancy struct {
	TenantID   string `json:"tenant_id"`
	ID         string `json:"id"`
	Enabled    bool   `json:"enabled"`
	PoolAmount int64  `json:"pool_amount"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type VacancyKey struct {
	TenantID  string `json:"tenant_id"`
	VacancyID string `json:"vacancy_id"`
}

func (v Vacancy) Key() VacancyKey {
	return VacancyKey{TenantID: v.TenantID, VacancyID: v.ID}
}

// Stage is one step of a vacancy pipeline. Amount is paid out on completion.
type Stage struct {
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	Approvable bool   `json:"approvable"`
}

// NotSubscribed is the position of a member without a subscription.
const NotSubscribed int64 = -1

type Subscription struct {
	TenantID     string `json:"tenant_id"`
	VacancyID    string `json:"vacancy_id"`
	MemberID     string `json:"member_id"`
	CurrentIndex int64  `json:"current_index"`
	Passed       bool   `json:"passed"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

// Gate names which authority advanced a subscription.
type Gate string

const (
	GateApproval Gate = "approval"
	GatePlatform Gate = "platform"
)

type Settlement struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	VacancyID   string `json:"vacancy_id"`
	MemberID    string `json:"member_id"`
	StageIndex  int64  `json:"stage_index"`
	StageName   string `json:"stage_name"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Net         int64  `json:"net"`
	Beneficiary string `json:"beneficiary"`
	Gate        Gate   `json:"gate"`
	ActorID     string `json:"actor_id"`
	Passed      bool   `json:"passed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// SplitFee divides amount into the platform fee and the member's net payout.
// fee = floor(amount*percent/100), computed without overflowing int64.
func SplitFee(amount, percent int64) (fee, net int64) {
	fee = (amount/100)*percent + (amount%100)*percent/100
	return fee, amount - fee
}

type PlatformSettings struct {
	Name                   string `json:"name"`
	Account                string `json:"account"`
	Beneficiary            string `json:"beneficiary"`
	ServiceFeePercent      int64  `json:"service_fee_percent"`
	PipelineMaxLength      int    `json:"pipeline_max_length"`
	BlockDeleteBelowActive bool   `json:"block_delete_below_active"`
	UpdatedAt              string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
