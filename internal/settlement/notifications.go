package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/notify"
)

// billParties loads the creditor and, when registered, the paying
// participant. Lookups that fail are logged and skipped; a notification is
// never worth failing a settlement over.
func (e *Engine) billParties(ctx context.Context, bill *models.Bill, participantID string) (creditor, participant *models.User) {
	var err error
	creditor, err = e.store.GetUser(ctx, bill.CreditorID)
	if err != nil {
		slog.Error("Creditor lookup for notification failed", "bill_id", bill.ID, "error", err)
	}
	if participantID != "" {
		participant, err = e.store.GetUser(ctx, participantID)
		if err != nil {
			slog.Error("Participant lookup for notification failed", "bill_id", bill.ID, "error", err)
		}
	}
	return creditor, participant
}

func (e *Engine) settledNotifications(ctx context.Context, bill *models.Bill, participantID, amount string) []notify.Notification {
	creditor, participant := e.billParties(ctx, bill, participantID)
	var batch []notify.Notification
	if creditor != nil {
		payer := "A participant"
		if participant != nil {
			payer = participant.Name
		}
		batch = append(batch, notify.Notification{
			RecipientToken: creditor.DeviceToken,
			Title:          "Contribution received",
			Body:           fmt.Sprintf("%s paid %s towards %q.", payer, amount, bill.Name),
			Metadata:       map[string]string{"bill_id": bill.ID},
		})
	}
	if participant != nil {
		batch = append(batch, notify.Notification{
			RecipientToken: participant.DeviceToken,
			Title:          "Payment settled",
			Body:           fmt.Sprintf("Your %s contribution to %q has been settled.", amount, bill.Name),
			Metadata:       map[string]string{"bill_id": bill.ID},
		})
	}
	return batch
}

func (e *Engine) transferProblemNotifications(ctx context.Context, bill *models.Bill, participantID string) []notify.Notification {
	creditor, participant := e.billParties(ctx, bill, participantID)
	var batch []notify.Notification
	if creditor != nil {
		batch = append(batch, notify.Notification{
			RecipientToken: creditor.DeviceToken,
			Title:          "Transfer problem",
			Body:           fmt.Sprintf("A payout for %q did not complete. We are looking into it.", bill.Name),
			Metadata:       map[string]string{"bill_id": bill.ID},
		})
	}
	if participant != nil {
		batch = append(batch, notify.Notification{
			RecipientToken: participant.DeviceToken,
			Title:          "Payment delayed",
			Body:           fmt.Sprintf("Your payment for %q was collected but its payout is delayed.", bill.Name),
			Metadata:       map[string]string{"bill_id": bill.ID},
		})
	}
	return batch
}

func (e *Engine) chargeFailedNotifications(ctx context.Context, bill *models.Bill, participantID string) []notify.Notification {
	creditor, participant := e.billParties(ctx, bill, participantID)
	var batch []notify.Notification
	if participant != nil {
		batch = append(batch, notify.Notification{
			RecipientToken: participant.DeviceToken,
			Title:          "Payment failed",
			Body:           fmt.Sprintf("Your recurring payment for %q failed. Please settle the outstanding amount.", bill.Name),
			Metadata:       map[string]string{"bill_id": bill.ID},
		})
	}
	if creditor != nil {
		payer := "A participant"
		if participant != nil {
			payer = participant.Name
		}
		batch = append(batch, notify.Notification{
			RecipientToken: creditor.DeviceToken,
			Title:          "Missed contribution",
			Body:           fmt.Sprintf("%s's recurring payment for %q failed.", payer, bill.Name),
			Metadata:       map[string]string{"bill_id": bill.ID},
		})
	}
	return batch
}
