package model

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

type SessionKind string

const (
	SessionKindChat      SessionKind = "chat"
	SessionKindVoiceCall SessionKind = "voice_call"
	SessionKindVideoCall SessionKind = "video_call"
)

func (k SessionKind) Valid() bool {
	switch k {
	case SessionKindChat, SessionKindVoiceCall, SessionKindVideoCall:
		return true
	}
	return false
}

// IsCall reports whether the session rings the provider before it starts.
func (k SessionKind) IsCall() bool {
	return k == SessionKindVoiceCall || k == SessionKindVideoCall
}

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRinging   SessionStatus = "ringing"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusRejected  SessionStatus = "rejected"
)

// OpenSessionStatuses are the statuses covered by the one-open-session-per-pair rule.
var OpenSessionStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusRinging,
	SessionStatusActive,
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusRinging, SessionStatusActive,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusRejected:
		return true
	}
	return false
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled || s == SessionStatusRejected
}

type SessionAction string

const (
	SessionActionRing     SessionAction = "ring"
	SessionActionJoin     SessionAction = "join"
	SessionActionEnd      SessionAction = "end"
	SessionActionCancel   SessionAction = "cancel"
	SessionActionReject   SessionAction = "reject"
	SessionActionAddNotes SessionAction = "add_notes"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
	WithdrawalStatusPaid     WithdrawalStatus = "paid"
)

// Disposition is the administrator's decision on a reserved withdrawal.
type Disposition string

const (
	DispositionApproved Disposition = "approved"
	DispositionRejected Disposition = "rejected"
)

type LedgerEntryType string

const (
	LedgerEntryCredit     LedgerEntryType = "credit"
	LedgerEntryDebit      LedgerEntryType = "debit"
	LedgerEntryWithdrawal LedgerEntryType = "withdrawal"
)

type LedgerEntryStatus string

const (
	LedgerStatusPending   LedgerEntryStatus = "pending"
	LedgerStatusCompleted LedgerEntryStatus = "completed"
	LedgerStatusReversed  LedgerEntryStatus = "reversed"
)

type PayoutMethodKind string

const (
	PayoutMethodBankTransfer PayoutMethodKind = "bank_transfer"
	PayoutMethodUPI          PayoutMethodKind = "upi"
	PayoutMethodPayPal       PayoutMethodKind = "paypal"
)

func (m PayoutMethodKind) Valid() bool {
	switch m {
	case PayoutMethodBankTransfer, PayoutMethodUPI, PayoutMethodPayPal:
		return true
	}
	return false
}
