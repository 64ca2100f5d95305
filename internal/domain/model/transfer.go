package model

import "time"

// TransferStatus is the state of a batch migration record.
type TransferStatus string

const (
	TransferStatusPending      TransferStatus = "pending"
	TransferStatusRescheduled  TransferStatus = "rescheduled"
	TransferStatusRunning      TransferStatus = "running"
	TransferStatusSynchronized TransferStatus = "synchronized"
	TransferStatusCompleted    TransferStatus = "completed"
	TransferStatusFailed       TransferStatus = "failed"
)

// Terminal reports whether no further automatic transition is allowed from the status.
// Completed records may still be synchronized by a transfer order.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusSynchronized || s == TransferStatusFailed
}

// Valid reports whether the status is known.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusPending, TransferStatusRescheduled, TransferStatusRunning,
		TransferStatusSynchronized, TransferStatusCompleted, TransferStatusFailed:
		return true
	}
	return false
}

// CustomerProfile is the snapshot of a migrated customer.
type CustomerProfile struct {
	CompanyName             string `json:"company_name,omitempty"`
	PreferredLanguage       string `json:"preferred_language,omitempty"`
	AddressLine1            string `json:"address_line_1,omitempty"`
	AddressLine2            string `json:"address_line_2,omitempty"`
	City                    string `json:"city,omitempty"`
	Region                  string `json:"region,omitempty"`
	PostalCode              string `json:"postal_code,omitempty"`
	Country                 string `json:"country,omitempty"`
	Phone                   string `json:"phone,omitempty"`
	ContactFirstName        string `json:"contact_first_name,omitempty"`
	ContactLastName         string `json:"contact_last_name,omitempty"`
	ContactEmail            string `json:"contact_email,omitempty"`
	ContactPhone            string `json:"contact_phone,omitempty"`
	CommitmentStartDate     string `json:"commitment_start_date,omitempty"`
	CommitmentEndDate       string `json:"commitment_end_date,omitempty"`
	CommitmentStatus        string `json:"commitment_status,omitempty"`
	CommitmentMinLicenses   int    `json:"commitment_min_licenses,omitempty"`
	CommitmentMinConsumable int    `json:"commitment_min_consumables,omitempty"`
}

// NewCustomerProfile snapshots a backend customer.
func NewCustomerProfile(c *Customer) CustomerProfile {
	p := CustomerProfile{
		CompanyName:       c.CompanyProfile.CompanyName,
		PreferredLanguage: c.CompanyProfile.PreferredLanguage,
		AddressLine1:      c.CompanyProfile.Address.AddressLine1,
		AddressLine2:      c.CompanyProfile.Address.AddressLine2,
		City:              c.CompanyProfile.Address.City,
		Region:            c.CompanyProfile.Address.State,
		PostalCode:        c.CompanyProfile.Address.PostCode,
		Country:           c.CompanyProfile.Address.Country,
		Phone:             c.CompanyProfile.Phone,
	}
	if len(c.CompanyProfile.Contacts) > 0 {
		contact := c.CompanyProfile.Contacts[0]
		p.ContactFirstName = contact.FirstName
		p.ContactLastName = contact.LastName
		p.ContactEmail = contact.Email
		p.ContactPhone = contact.Phone
	}
	if commitment := c.ThreeYearCommitment(); commitment != nil {
		p.CommitmentStartDate = commitment.StartDate
		p.CommitmentEndDate = commitment.EndDate
		p.CommitmentStatus = commitment.Status
		p.CommitmentMinLicenses = commitment.MinimumQuantity(OfferTypeLicense)
		p.CommitmentMinConsumable = commitment.MinimumQuantity(OfferTypeConsumables)
	}
	return p
}

// Transfer is a persisted membership migration record.
type Transfer struct {
	ID                int64
	ProductID         string
	AuthorizationID   string
	SellerID          string
	MembershipID      string
	TransferID        string
	CustomerID        string
	Status            TransferStatus
	RetryCount        int
	RescheduleCount   int
	ErrorCode         string
	ErrorDescription  string
	StatusDescription string
	Customer          CustomerProfile
	MPTOrderID        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
	SynchronizedAt    *time.Time
}

// TransferRegistration describes a membership scheduled for batch migration.
type TransferRegistration struct {
	ProductID       string `json:"product_id"`
	AuthorizationID string `json:"authorization_id"`
	SellerID        string `json:"seller_id"`
	MembershipID    string `json:"membership_id"`
}

// Offer is a per-SKU renewal snapshot captured while previewing a scheduled transfer.
type Offer struct {
	ID           int64
	MembershipID string
	OfferID      string
	Quantity     int
	RenewalDate  string
	CreatedAt    time.Time
}
