package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// PlanStatus статус плана в каталоге
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "Active"
	PlanStatusInactive PlanStatus = "Inactive"
	PlanStatusPending  PlanStatus = "Pending"
)

// Valid проверяет допустимость статуса
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusActive, PlanStatusInactive, PlanStatusPending:
		return true
	}
	return false
}

// PricingTier - ценовое предложение внутри плана
type PricingTier struct {
	PricingID   string   `json:"pricingId"`
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	IsPopular   bool     `json:"isPopular"`
}

// PricingTiers хранится одной JSONB колонкой
type PricingTiers []PricingTier

// Value реализует driver.Valuer
func (p PricingTiers) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan реализует sql.Scanner
func (p *PricingTiers) Scan(src any) error {
	return scanJSON(src, p)
}

// Plan - план, один на пару (service, subService)
type Plan struct {
	PlanID         string       `json:"planId" db:"plan_id"`
	ServiceID      string       `json:"serviceId" db:"service_id"`
	SubServiceID   string       `json:"subServiceId" db:"sub_service_id"`
	Name           string       `json:"name" db:"name"`
	Pricing        PricingTiers `json:"pricing" db:"pricing"`
	Status         PlanStatus   `json:"status" db:"status"`
	DurationMonths *int         `json:"durationMonths,omitempty" db:"duration_months"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" db:"updated_at"`
}

// FindPricing ищет тариф по ID внутри плана
func (p *Plan) FindPricing(pricingID string) (*PricingTier, bool) {
	for i := range p.Pricing {
		if p.Pricing[i].PricingID == pricingID {
			tier := p.Pricing[i]
			return &tier, true
		}
	}
	return nil, false
}

// HasDuration сообщает, задан ли у плана срок действия
func (p *Plan) HasDuration() bool {
	return p.DurationMonths != nil && *p.DurationMonths > 0
}

// PlanFilter параметры выборки планов
type PlanFilter struct {
	Search  string
	Status  PlanStatus
	Page    int
	PerPage int
}

// ContentBlock - блок описания услуги
type ContentBlock struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ContentBlocks хранится JSONB колонкой
type ContentBlocks []ContentBlock

func (c ContentBlocks) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

func (c *ContentBlocks) Scan(src any) error {
	return scanJSON(src, c)
}

// SubService - подуслуга внутри услуги
type SubService struct {
	SubServiceID string        `json:"subServiceId"`
	Heading      string        `json:"heading"`
	Description  string        `json:"description,omitempty"`
	Logo         string        `json:"logo,omitempty"`
	Content      ContentBlocks `json:"content,omitempty"`
}

// SubServices хранится JSONB колонкой
type SubServices []SubService

func (s SubServices) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *SubServices) Scan(src any) error {
	return scanJSON(src, s)
}

// Service - услуга каталога
type Service struct {
	ServiceID   string        `json:"serviceId" db:"service_id"`
	Heading     string        `json:"heading" db:"heading"`
	Description string        `json:"description" db:"description"`
	Logo        string        `json:"logo,omitempty" db:"logo"`
	Content     ContentBlocks `json:"content" db:"content"`
	SubServices SubServices   `json:"subServices" db:"sub_services"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}

// FindSubService ищет подуслугу по ID
func (s *Service) FindSubService(id string) (*SubService, bool) {
	for i := range s.SubServices {
		if s.SubServices[i].SubServiceID == id {
			sub := s.SubServices[i]
			return &sub, true
		}
	}
	return nil, false
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported JSON column type")
	}
}
