package notification

import (
	"fmt"

	"github.com/mbellotti/exitflow/pkg/models"
)

// Render produces the subject and body for a notification type. Context schema:
// every template gets the lease exit id and property address; the remaining
// fields are type-specific and optional.
func Render(notificationType models.NotificationType, leaseExit *models.LeaseExit, extra map[string]string) (string, string) {
	address := leaseExit.PropertyDetails.Address
	if address == "" {
		address = "N/A"
	}

	link := "/lease-exits/" + leaseExit.ID

	switch notificationType {
	case models.NotificationInitialSubmission:
		return fmt.Sprintf("New Lease Exit Submission - %s", address),
			fmt.Sprintf("A new lease exit has been submitted for %s (ID: %s). Please review the details and complete your required forms at %s.",
				address, leaseExit.ID, link)
	case models.NotificationFormSubmission:
		return fmt.Sprintf("Form Submitted for Lease Exit - %s", address),
			fmt.Sprintf("A %s form has been submitted by %s for the lease exit at %s. Please review the updated information at %s.",
				extra["form_type"], extra["submitted_by"], address, link)
	case models.NotificationApprovalRequest:
		return fmt.Sprintf("Approval Required - %s", address),
			fmt.Sprintf("Your approval is required for the lease exit at %s (ID: %s). Please review and provide your decision at %s.",
				address, leaseExit.ID, link)
	case models.NotificationApprovalComplete:
		return fmt.Sprintf("Lease Exit Approved - %s", address),
			fmt.Sprintf("All approvals have been received for the lease exit at %s (ID: %s). It is now marked Ready for Exit. Details: %s.",
				address, leaseExit.ID, link)
	case models.NotificationApprovalRejected:
		body := fmt.Sprintf("The lease exit at %s (ID: %s) has been rejected by %s.",
			address, leaseExit.ID, extra["rejected_by"])
		if extra["comments"] != "" {
			body += " Comments: " + extra["comments"]
		}

		body += fmt.Sprintf(" Please review and correct before resubmitting: %s.", link)

		return fmt.Sprintf("Lease Exit Rejected - %s", address), body
	case models.NotificationReminder:
		return fmt.Sprintf("Reminder: Pending Approval for Lease Exit %s", leaseExit.ID),
			fmt.Sprintf("You have a pending approval for the lease exit at %s (ID: %s) that requires your attention: %s.",
				address, leaseExit.ID, link)
	case models.NotificationDeadline:
		return fmt.Sprintf("Approaching Deadline: Lease Exit %s", leaseExit.ID),
			fmt.Sprintf("The lease exit at %s (ID: %s) is scheduled to complete in %s days.",
				address, leaseExit.ID, extra["days_remaining"])
	default:
		return "Lease Exit Update",
			fmt.Sprintf("There is an update for the lease exit at %s (ID: %s): %s.", address, leaseExit.ID, link)
	}
}
