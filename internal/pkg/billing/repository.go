package billing

import (
	"time"

	"github.com/nimbushost/nimbushost/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the storage operations used by the reconciler and the
// admin billing views. All upserts are keyed by provider-side external ids;
// consistency under concurrent deliveries comes from the unique constraints
// and atomic ON CONFLICT clauses, not from application locks.
type Repository interface {
	GetCustomerByProviderID(providerCustomerID string) (*models.Customer, error)
	GetCustomerByUserID(userID uint) (*models.Customer, error)
	UpsertCustomer(customer *models.Customer) error

	GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	ReplaceSubscriptionItems(subscriptionID uint, items []models.SubscriptionItem) error
	UpdateSubscriptionProvisioningStatus(subscriptionID uint, status string) error
	ListSubscriptionsByCustomer(customerID uint) ([]models.Subscription, error)

	GetInvoiceByProviderID(providerInvoiceID string) (*models.Invoice, error)
	UpsertInvoice(inv *models.Invoice) error
	ListInvoicesByCustomer(customerID uint) ([]models.Invoice, error)

	GetPaymentMethodByProviderID(providerPaymentMethodID string) (*models.PaymentMethod, error)
	UpsertPaymentMethod(pm *models.PaymentMethod) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint) error
	RecordWebhookFailure(id uint, message string) error
	ListWebhookEvents(offset, limit int) ([]models.WebhookEvent, error)

	CreateProvisioningLog(entry *models.ProvisioningLog) error
	ListProvisioningLogs(offset, limit int) ([]models.ProvisioningLog, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCustomerByProviderID(providerCustomerID string) (*models.Customer, error) {
	var c models.Customer
	err := r.db.Where("provider_customer_id = ?", providerCustomerID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) GetCustomerByUserID(userID uint) (*models.Customer, error) {
	var c models.Customer
	err := r.db.Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) UpsertCustomer(customer *models.Customer) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"name",
			"last_event_at",
			"updated_at",
		}),
	}).Create(customer).Error; err != nil {
		return err
	}
	return r.db.Where("provider_customer_id = ?", customer.ProviderCustomerID).First(customer).Error
}

func (r *gormRepository) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider_subscription_id = ?", providerSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"checkout_session_id",
			"status",
			"plan_name",
			"billing_interval",
			"provider_price_ref",
			"amount_total",
			"currency",
			"current_period_start",
			"current_period_end",
			"metadata_json",
			"provisioning_status",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_subscription_id = ?", sub.ProviderSubscriptionID).First(sub).Error
}

func (r *gormRepository) ReplaceSubscriptionItems(subscriptionID uint, items []models.SubscriptionItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(items))
		for i := range items {
			items[i].SubscriptionID = subscriptionID
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "provider_item_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"subscription_id",
					"provider_price_id",
					"provider_product_id",
					"product_name",
					"quantity",
					"unit_amount",
					"currency",
					"updated_at",
				}),
			}).Create(&items[i]).Error; err != nil {
				return err
			}
			keep = append(keep, items[i].ProviderItemID)
		}
		if len(keep) == 0 {
			return nil
		}
		return tx.Where("subscription_id = ? AND provider_item_id NOT IN ?", subscriptionID, keep).
			Delete(&models.SubscriptionItem{}).Error
	})
}

func (r *gormRepository) UpdateSubscriptionProvisioningStatus(subscriptionID uint, status string) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("provisioning_status", status).Error
}

func (r *gormRepository) ListSubscriptionsByCustomer(customerID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) GetInvoiceByProviderID(providerInvoiceID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.Where("provider_invoice_id = ?", providerInvoiceID).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) UpsertInvoice(inv *models.Invoice) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_invoice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subscription_id",
			"customer_id",
			"status",
			"amount_due",
			"amount_paid",
			"amount_remaining",
			"currency",
			"paid",
			"issued_at",
			"last_event_at",
			"updated_at",
		}),
	}).Create(inv).Error; err != nil {
		return err
	}
	return r.db.Where("provider_invoice_id = ?", inv.ProviderInvoiceID).First(inv).Error
}

func (r *gormRepository) ListInvoicesByCustomer(customerID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

func (r *gormRepository) GetPaymentMethodByProviderID(providerPaymentMethodID string) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := r.db.Where("provider_payment_method_id = ?", providerPaymentMethodID).First(&pm).Error
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// UpsertPaymentMethod writes the payment method and, when it is flagged
// default, clears IsDefault on the customer's other methods inside the same
// transaction so at most one default survives.
func (r *gormRepository) UpsertPaymentMethod(pm *models.PaymentMethod) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_payment_method_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"customer_id",
				"type",
				"card_brand",
				"card_last4",
				"is_default",
				"last_event_at",
				"updated_at",
			}),
		}).Create(pm).Error; err != nil {
			return err
		}
		if err := tx.Where("provider_payment_method_id = ?", pm.ProviderPaymentMethodID).First(pm).Error; err != nil {
			return err
		}
		if !pm.IsDefault {
			return nil
		}
		return tx.Model(&models.PaymentMethod{}).
			Where("customer_id = ? AND id != ?", pm.CustomerID, pm.ID).
			Update("is_default", false).Error
	})
}

// CreateWebhookEventIfNotExists inserts the event keyed by the provider event
// id. Concurrent deliveries of the same id race on the unique index; exactly
// one insert wins and the loser gets created=false with the stored row.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}).Error
}

// RecordWebhookFailure stores the error but leaves processed_at null so the
// processor's redelivery of the same event id is treated as first-seen again.
func (r *gormRepository) RecordWebhookFailure(id uint, message string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("processing_error", message).Error
}

func (r *gormRepository) ListWebhookEvents(offset, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

func (r *gormRepository) CreateProvisioningLog(entry *models.ProvisioningLog) error {
	return r.db.Create(entry).Error
}

func (r *gormRepository) ListProvisioningLogs(offset, limit int) ([]models.ProvisioningLog, error) {
	var logs []models.ProvisioningLog
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, err
}
