package app

import (
	"strings"

	"github.com/sophiasearch-2025/admin-interface/internal/domain"
	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
	"github.com/sophiasearch-2025/admin-interface/pkg/usersclient"
)

// userRecord maps a Users service record to the domain. comprobanteURL
// resolves the proof-of-payment reference and is only called when one exists.
func userRecord(u usersclient.User, comprobanteURL func(string) string) domain.UserRecord {
	record := domain.UserRecord{
		UID:             u.Key(),
		Email:           strings.TrimSpace(u.Email),
		DisplayName:     u.DisplayName(),
		Role:            u.Role,
		ApprovalState:   domain.ApprovalState(u.Approval()),
		AccountState:    accountState(u.Estado),
		RejectionReason: u.MotivoRechazo,
		CreatedAt:       u.CreatedAt.Ptr(),
	}
	if u.Company != nil {
		record.Company = strings.TrimSpace(*u.Company)
	}
	if u.HasComprobante() {
		if u.ComprobanteURL != nil && strings.HasPrefix(*u.ComprobanteURL, "http") {
			record.ProofOfPaymentRef = *u.ComprobanteURL
		} else if comprobanteURL != nil {
			record.ProofOfPaymentRef = comprobanteURL(record.UID)
		}
	}
	return record
}

func accountState(estado string) domain.AccountState {
	if strings.EqualFold(strings.TrimSpace(estado), usersclient.EstadoSuspended) {
		return domain.AccountSuspended
	}
	return domain.AccountActive
}

func subscriptionRecord(s subscriptionclient.Subscription) domain.SubscriptionRecord {
	return domain.SubscriptionRecord{
		ID:                s.ID,
		UserID:            strings.TrimSpace(s.UserID),
		Plan:              s.PlanLabel(),
		Status:            domain.SubscriptionStatus(strings.TrimSpace(s.Status)),
		Price:             s.Amount(),
		PeriodStart:       s.CurrentPeriodStart.Ptr(),
		PeriodEnd:         s.CurrentPeriodEnd.Ptr(),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
}

func userRecords(users []usersclient.User, comprobanteURL func(string) string) []domain.UserRecord {
	records := make([]domain.UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, userRecord(u, comprobanteURL))
	}
	return records
}

func subscriptionRecords(subs []subscriptionclient.Subscription) []domain.SubscriptionRecord {
	records := make([]domain.SubscriptionRecord, 0, len(subs))
	for _, s := range subs {
		records = append(records, subscriptionRecord(s))
	}
	return records
}
