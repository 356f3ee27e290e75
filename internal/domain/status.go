package domain

import "strings"

// Status is the lifecycle state of a quotation. The five canonical states
// form a fixed forward-only sequence; CANCELADA is reachable from anywhere.
// Legacy rows may carry free-form values outside the canonical set, which
// are exempt from strict ordering.
type Status string

const (
	StatusPendiente    Status = "PENDIENTE"
	StatusEnProceso    Status = "EN_PROCESO"
	StatusProduccion   Status = "PRODUCCION"
	StatusInstalacion  Status = "INSTALACION"
	StatusFinalizacion Status = "FINALIZACION"
	StatusCancelada    Status = "CANCELADA"
)

// statusSequence is the ordered production flow. Index distance drives the
// "no skipping states" rule.
var statusSequence = []Status{
	StatusPendiente,
	StatusEnProceso,
	StatusProduccion,
	StatusInstalacion,
	StatusFinalizacion,
}

func NormalizeStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// SequenceIndex returns the position in the canonical flow, or -1 for
// CANCELADA and legacy values. A -1 on either side of a transition makes
// the transition exempt from the ordering rule.
func (s Status) SequenceIndex() int {
	for i, v := range statusSequence {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Status) IsCanonical() bool {
	return s == StatusCancelada || s.SequenceIndex() >= 0
}

// NextInSequence returns the next allowed canonical status, if any.
func (s Status) NextInSequence() (Status, bool) {
	i := s.SequenceIndex()
	if i < 0 || i+1 >= len(statusSequence) {
		return "", false
	}
	return statusSequence[i+1], true
}

// ProgressForStatus maps a status to its default percent-complete. Legacy
// synonyms from the old record keeping (NUEVA, APROBADA, FINALIZADA, ...)
// keep their historical values; anything else lands on 10.
func ProgressForStatus(s Status) int {
	switch s {
	case StatusPendiente, "NUEVA":
		return 5
	case StatusEnProceso, "APROBADA":
		return 20
	case StatusProduccion:
		return 55
	case StatusInstalacion:
		return 85
	case StatusFinalizacion, "FINALIZADA", "COMPLETADA", "ENTREGADA":
		return 100
	default:
		return 10
	}
}

// ApprovalStatus tracks the review state of a progress update (and, mirrored
// at the quotation level, the most recent uncommitted proposal).
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)
