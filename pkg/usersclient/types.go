package usersclient

import (
	"strings"

	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
)

// Approval values as reported by the Users service.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// User mirrors a record returned by GET /api/users.
type User struct {
	ID                 string               `json:"id"`
	UID                string               `json:"uid"`
	Email              string               `json:"email"`
	Name               string               `json:"name,omitempty"`
	Username           string               `json:"username,omitempty"`
	Company            *string              `json:"company,omitempty"`
	Estado             string               `json:"estado"`
	ApprovalState      string               `json:"approvalState,omitempty"`
	EstadoSolicitud    string               `json:"estadoSolicitud,omitempty"`
	SolicitudAprobada  *bool                `json:"solicitudAprobada,omitempty"`
	SolicitudRechazada *bool                `json:"solicitudRechazada,omitempty"`
	Rechazado          *bool                `json:"rechazado,omitempty"`
	MotivoRechazo      string               `json:"motivoRechazo,omitempty"`
	StripeCustomerID   *string              `json:"stripeCustomerId,omitempty"`
	Role               string               `json:"role,omitempty"`
	PhotoURL           *string              `json:"photoURL,omitempty"`
	ComprobanteURL     *string              `json:"comprobanteUrl,omitempty"`
	ComprobanteInfo    *ComprobanteInfo     `json:"comprobanteInfo,omitempty"`
	CreatedAt          *transport.Timestamp `json:"createdAt,omitempty"`
	UpdatedAt          *transport.Timestamp `json:"updatedAt,omitempty"`
}

// ComprobanteInfo describes an uploaded proof-of-payment file.
type ComprobanteInfo struct {
	Filename   string               `json:"filename"`
	Mimetype   string               `json:"mimetype"`
	Size       int64                `json:"size"`
	UploadedAt *transport.Timestamp `json:"uploadedAt,omitempty"`
}

// RejectRequest is the body of PATCH /api/users/:id/reject.
type RejectRequest struct {
	Motivo string `json:"motivo,omitempty"`
}

// StatusRequest is the body of PATCH /api/users/:id.
type StatusRequest struct {
	Estado string `json:"estado"`
}

// Key returns the stable identity of the user: uid, falling back to the document id.
func (u User) Key() string {
	if uid := strings.TrimSpace(u.UID); uid != "" {
		return uid
	}
	return strings.TrimSpace(u.ID)
}

// DisplayName prefers name, then username, then the email local part.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if username := strings.TrimSpace(u.Username); username != "" {
		return username
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Approval resolves the signup decision. An explicit approvalState or
// estadoSolicitud field wins over the boolean flags.
func (u User) Approval() string {
	for _, raw := range []string{u.ApprovalState, u.EstadoSolicitud} {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "approved", "aprobada", "aprobado":
			return ApprovalApproved
		case "rejected", "rechazada", "rechazado":
			return ApprovalRejected
		case "pending", "pendiente":
			return ApprovalPending
		}
	}
	if u.SolicitudAprobada != nil && *u.SolicitudAprobada {
		return ApprovalApproved
	}
	if (u.SolicitudRechazada != nil && *u.SolicitudRechazada) || (u.Rechazado != nil && *u.Rechazado) {
		return ApprovalRejected
	}
	return ApprovalPending
}

// HasComprobante reports whether a proof-of-payment was uploaded.
func (u User) HasComprobante() bool {
	return (u.ComprobanteURL != nil && strings.TrimSpace(*u.ComprobanteURL) != "") || u.ComprobanteInfo != nil
}
