// Package directory provides gorm-backed implementations of the lookups the
// QC engine needs from the surrounding ERP: production orders, inspectors,
// customer requirements and the delivery hand-off.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
)

// Orders reads and updates production orders.
type Orders struct {
	db *gorm.DB
}

// NewOrders returns an order directory backed by db.
func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

// Get returns the order with the given id, or (nil, nil) if none exists.
func (o *Orders) Get(ctx context.Context, id string) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	err := o.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get order %s: %w", id, err)
	}
	return &order, nil
}

// SetStatus writes the order status.
func (o *Orders) SetStatus(ctx context.Context, id, status string) error {
	result := o.db.WithContext(ctx).Model(&models.ProductionOrder{}).
		Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("directory: set order %s status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("directory: set order %s status: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Inspectors resolves inspector ids against the employees table.
type Inspectors struct {
	db *gorm.DB
}

// NewInspectors returns an inspector directory backed by db.
func NewInspectors(db *gorm.DB) *Inspectors {
	return &Inspectors{db: db}
}

// Exists reports whether id names an active employee.
func (i *Inspectors) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := i.db.WithContext(ctx).Model(&models.Employee{}).
		Where("id = ? AND active = ?", id, true).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("directory: lookup inspector %s: %w", id, err)
	}
	return count > 0, nil
}

// Requirements returns registered customer requirements.
type Requirements struct {
	db *gorm.DB
}

// NewRequirements returns a requirements lookup backed by db.
func NewRequirements(db *gorm.DB) *Requirements {
	return &Requirements{db: db}
}

// ForCustomer returns the customer's requirements in registration order.
func (r *Requirements) ForCustomer(ctx context.Context, name string) ([]string, error) {
	var rows []models.CustomerRequirement
	err := r.db.WithContext(ctx).Where("customer_name = ?", name).
		Order("position ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("directory: requirements for %q: %w", name, err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Requirement)
	}
	return out, nil
}

// Delivery marks orders ready for delivery once their certificate is approved.
type Delivery struct {
	orders *Orders
}

// NewDelivery returns a delivery trigger that updates order status.
func NewDelivery(orders *Orders) *Delivery {
	return &Delivery{orders: orders}
}

// StartDelivery moves the order to READY_FOR_DELIVERY.
func (d *Delivery) StartDelivery(ctx context.Context, orderID, certificateID string) error {
	if err := d.orders.SetStatus(ctx, orderID, models.OrderReadyForDelivery); err != nil {
		return fmt.Errorf("directory: start delivery for %s (certificate %s): %w", orderID, certificateID, err)
	}
	return nil
}
