package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nimbushost/nimbushost/app/models"
)

const adminBillingPerPage = 50

// HandleAdminSubscriptions lists all mirrored subscriptions with their
// customers, newest first.
func HandleAdminSubscriptions(c *fiber.Ctx) error {
	page, offset := pageParam(c, adminBillingPerPage)

	var subs []models.Subscription
	err := db.Preload("Customer").Order("created_at DESC").
		Offset(offset).Limit(adminBillingPerPage).Find(&subs).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("subscriptions unavailable")
	}

	return render(c, "admin/billing/subscriptions", fiber.Map{
		"Title":         "Subscriptions",
		"Subscriptions": subs,
		"Page":          page,
		"HasMore":       len(subs) == adminBillingPerPage,
	})
}

// HandleAdminWebhookEvents lists received webhook deliveries so an operator
// can inspect failures and duplicates.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	page, offset := pageParam(c, adminBillingPerPage)

	events, err := billingRepo.ListWebhookEvents(offset, adminBillingPerPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("webhook events unavailable")
	}

	return render(c, "admin/billing/webhook_events", fiber.Map{
		"Title":   "Webhook events",
		"Events":  events,
		"Page":    page,
		"HasMore": len(events) == adminBillingPerPage,
	})
}

// HandleAdminProvisioningLogs lists the append-only provisioning audit trail.
func HandleAdminProvisioningLogs(c *fiber.Ctx) error {
	page, offset := pageParam(c, adminBillingPerPage)

	logs, err := billingRepo.ListProvisioningLogs(offset, adminBillingPerPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("provisioning logs unavailable")
	}

	return render(c, "admin/billing/provisioning_logs", fiber.Map{
		"Title":   "Provisioning logs",
		"Logs":    logs,
		"Page":    page,
		"HasMore": len(logs) == adminBillingPerPage,
	})
}
