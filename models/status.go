package models

// InvoiceType distinguishes billable documents.
type InvoiceType string

const (
	InvoiceTypeStandard        InvoiceType = "Standard"
	InvoiceTypeCreditNote      InvoiceType = "CreditNote"
	InvoiceTypeProformaDeposit InvoiceType = "ProformaDeposit"
)

func (t InvoiceType) String() string { return string(t) }

// Valid reports whether t is a known invoice type.
func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceTypeStandard, InvoiceTypeCreditNote, InvoiceTypeProformaDeposit:
		return true
	}
	return false
}

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "Draft"
	InvoiceIssued        InvoiceStatus = "Issued"
	InvoicePartiallyPaid InvoiceStatus = "PartiallyPaid"
	InvoicePaid          InvoiceStatus = "Paid"
	InvoiceOverdue       InvoiceStatus = "Overdue"
	InvoiceCancelled     InvoiceStatus = "Cancelled"
	InvoiceRefunded      InvoiceStatus = "Refunded"
)

// invoiceTransitions is the user-visible transition table.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:         {InvoiceIssued, InvoiceCancelled},
	InvoiceIssued:        {InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue, InvoiceCancelled},
	InvoicePartiallyPaid: {InvoicePaid, InvoiceOverdue, InvoiceCancelled},
	InvoiceOverdue:       {InvoicePaid, InvoiceCancelled},
	InvoicePaid:          {InvoiceRefunded},
}

func (s InvoiceStatus) String() string { return string(s) }

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceIssued, InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue, InvoiceCancelled, InvoiceRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether target is in the allowed set for s.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	return contains(invoiceTransitions[s], target)
}

// Payable reports whether payments may be recorded against an invoice in s.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceIssued || s == InvoicePartiallyPaid || s == InvoiceOverdue
}

// Terminal reports whether no transition leaves s.
func (s InvoiceStatus) Terminal() bool {
	return len(invoiceTransitions[s]) == 0
}

// PaymentMethod is how money moved.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodCard         PaymentMethod = "Card"
	MethodBankTransfer PaymentMethod = "BankTransfer"
	MethodCheque       PaymentMethod = "Cheque"
	MethodEDirham      PaymentMethod = "EDirham"
	MethodOnline       PaymentMethod = "Online"
)

// PaymentMethods lists every accepted method.
var PaymentMethods = []PaymentMethod{MethodCash, MethodCard, MethodBankTransfer, MethodCheque, MethodEDirham, MethodOnline}

func (m PaymentMethod) String() string { return string(m) }

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	return contains(PaymentMethods, m)
}

// RequiresReference reports whether a reference number must accompany m.
func (m PaymentMethod) RequiresReference() bool {
	return m != MethodCash
}

// PaymentStatus is the lifecycle state of a client payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentRefunded  PaymentStatus = "Refunded"
	PaymentCancelled PaymentStatus = "Cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentCompleted: {PaymentRefunded},
}

func (s PaymentStatus) String() string { return string(s) }

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether target is in the allowed set for s.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	return contains(paymentTransitions[s], target)
}

// SupplierPaymentStatus is the lifecycle state of an outbound supplier payment.
type SupplierPaymentStatus string

const (
	SupplierPending       SupplierPaymentStatus = "Pending"
	SupplierPaid          SupplierPaymentStatus = "Paid"
	SupplierPartiallyPaid SupplierPaymentStatus = "PartiallyPaid"
	SupplierCancelled     SupplierPaymentStatus = "Cancelled"
)

var supplierTransitions = map[SupplierPaymentStatus][]SupplierPaymentStatus{
	SupplierPending:       {SupplierPaid, SupplierPartiallyPaid, SupplierCancelled},
	SupplierPartiallyPaid: {SupplierPaid, SupplierCancelled},
}

func (s SupplierPaymentStatus) String() string { return string(s) }

// Valid reports whether s is a known supplier payment status.
func (s SupplierPaymentStatus) Valid() bool {
	switch s {
	case SupplierPending, SupplierPaid, SupplierPartiallyPaid, SupplierCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether target is in the allowed set for s.
func (s SupplierPaymentStatus) CanTransitionTo(target SupplierPaymentStatus) bool {
	return contains(supplierTransitions[s], target)
}

// DiscountProgramType names the membership scheme behind a discount.
type DiscountProgramType string

const (
	DiscountSaada  DiscountProgramType = "Saada"
	DiscountFazaa  DiscountProgramType = "Fazaa"
	DiscountCustom DiscountProgramType = "Custom"
)

// Valid reports whether t is a known program type.
func (t DiscountProgramType) Valid() bool {
	return t == DiscountSaada || t == DiscountFazaa || t == DiscountCustom
}

// RequiresCard reports whether the program is tied to a membership card.
func (t DiscountProgramType) RequiresCard() bool {
	return t == DiscountSaada || t == DiscountFazaa
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
