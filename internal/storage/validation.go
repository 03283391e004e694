package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfwise/shelfwise/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrInvalidStatus       = errors.New("invalid pending match status")
	ErrInvalidReceipt      = errors.New("invalid receipt")
	ErrInvalidItem         = errors.New("invalid item")
	ErrInvalidMapping      = errors.New("invalid mapping")
	ErrInvalidPendingMatch = errors.New("invalid pending match")
	ErrInvalidObservation  = errors.New("invalid price observation")
	ErrInvalidAggregate    = errors.New("invalid price aggregate")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateReceipt(receipt *model.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("%w: receipt", ErrNilParameter)
	}
	if receipt.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidReceipt)
	}
	if receipt.Hash == "" {
		return fmt.Errorf("%w: missing hash", ErrInvalidReceipt)
	}
	if receipt.StoreName == "" {
		return fmt.Errorf("%w: missing store name", ErrInvalidReceipt)
	}
	if receipt.PurchasedAt.IsZero() {
		return fmt.Errorf("%w: missing purchase date", ErrInvalidReceipt)
	}
	return nil
}

func validateListItem(item *model.ListItem) error {
	if item == nil {
		return fmt.Errorf("%w: list item", ErrNilParameter)
	}
	if item.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidItem)
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidItem)
	}
	return nil
}

func validatePantryItem(item *model.PantryItem) error {
	if item == nil {
		return fmt.Errorf("%w: pantry item", ErrNilParameter)
	}
	if item.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidItem)
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidItem)
	}
	if item.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidItem)
	}
	switch item.Stock {
	case model.StockStocked, model.StockLow, model.StockOut:
	default:
		return fmt.Errorf("%w: unknown stock level %q", ErrInvalidItem, item.Stock)
	}
	switch item.Status {
	case model.ItemActive, model.ItemArchived:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidItem, item.Status)
	}
	return nil
}

func validateMapping(mapping *model.LearnedMapping) error {
	if mapping == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if strings.TrimSpace(mapping.UserID) == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidMapping)
	}
	if strings.TrimSpace(mapping.ReceiptName) == "" {
		return fmt.Errorf("%w: missing receipt name", ErrInvalidMapping)
	}
	if strings.TrimSpace(mapping.CanonicalName) == "" {
		return fmt.Errorf("%w: missing canonical name", ErrInvalidMapping)
	}
	return nil
}

func validatePendingMatch(match *model.PendingMatch) error {
	if match == nil {
		return fmt.Errorf("%w: pending match", ErrNilParameter)
	}
	if match.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidPendingMatch)
	}
	if match.ReceiptID == "" {
		return fmt.Errorf("%w: missing receipt ID", ErrInvalidPendingMatch)
	}
	switch match.Status {
	case model.MatchPending, model.MatchConfirmed, model.MatchSkipped, model.MatchNoMatch:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, match.Status)
	}
	return nil
}

func validateObservation(obs *model.PriceObservation) error {
	if obs == nil {
		return fmt.Errorf("%w: observation", ErrNilParameter)
	}
	if obs.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidObservation)
	}
	if obs.NormalizedName == "" {
		return fmt.Errorf("%w: missing normalized name", ErrInvalidObservation)
	}
	if obs.Size == "" {
		return fmt.Errorf("%w: missing size", ErrInvalidObservation)
	}
	if obs.StoreID == "" {
		return fmt.Errorf("%w: missing store", ErrInvalidObservation)
	}
	if !obs.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidObservation)
	}
	if obs.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing observation time", ErrInvalidObservation)
	}
	return nil
}

func validateCurrentPrice(price *model.CurrentPrice) error {
	if price == nil {
		return fmt.Errorf("%w: current price", ErrNilParameter)
	}
	if price.NormalizedName == "" || price.Size == "" || price.StoreID == "" {
		return fmt.Errorf("%w: incomplete aggregate key", ErrInvalidAggregate)
	}
	if price.ReportCount < 1 {
		return fmt.Errorf("%w: report count must be at least 1", ErrInvalidAggregate)
	}
	if price.MinPrice.GreaterThan(price.AveragePrice) || price.AveragePrice.GreaterThan(price.MaxPrice) {
		return fmt.Errorf("%w: min/avg/max out of order", ErrInvalidAggregate)
	}
	return nil
}
