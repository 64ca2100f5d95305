package model

import (
	"encoding/json"
)

// Ordering parameter external ids.
const (
	ParamCompanyName       = "companyName"
	ParamPreferredLanguage = "preferredLanguage"
	ParamAddress           = "address"
	ParamContact           = "contact"
	ParamMembershipID      = "membershipId"
)

// Fulfillment parameter external ids.
const (
	ParamCustomerID = "customerId"
	ParamRetryCount = "retryCount"
	ParamNextSync   = "nextSync"
	ParamAdobeSKU   = "adobeSKU"
)

// ParameterError is a customer-facing validation error attached to a parameter.
type ParameterError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Parameter is a single named value on an order, agreement or subscription.
type Parameter struct {
	ID         string          `json:"id,omitempty"`
	ExternalID string          `json:"externalId"`
	Name       string          `json:"name,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Error      *ParameterError `json:"error,omitempty"`
}

// String returns the value as text; non-string JSON values are returned verbatim.
func (p Parameter) String() string {
	if len(p.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return s
	}
	if string(p.Value) == "null" {
		return ""
	}
	return string(p.Value)
}

// Decode unmarshals a structured value such as an address or contact.
func (p Parameter) Decode(v any) error {
	if len(p.Value) == 0 {
		return nil
	}
	return json.Unmarshal(p.Value, v)
}

// Parameters groups ordering (customer supplied) and fulfillment (process internal) values.
type Parameters struct {
	Ordering    []Parameter `json:"ordering"`
	Fulfillment []Parameter `json:"fulfillment"`
}

func find(params []Parameter, externalID string) *Parameter {
	for i := range params {
		if params[i].ExternalID == externalID {
			return &params[i]
		}
	}
	return nil
}

// OrderingParam looks up an ordering parameter by external id.
func (p *Parameters) OrderingParam(externalID string) *Parameter {
	return find(p.Ordering, externalID)
}

// FulfillmentParam looks up a fulfillment parameter by external id.
func (p *Parameters) FulfillmentParam(externalID string) *Parameter {
	return find(p.Fulfillment, externalID)
}

// OrderingValue returns the text value of an ordering parameter.
func (p *Parameters) OrderingValue(externalID string) string {
	if param := p.OrderingParam(externalID); param != nil {
		return param.String()
	}
	return ""
}

// FulfillmentValue returns the text value of a fulfillment parameter.
func (p *Parameters) FulfillmentValue(externalID string) string {
	if param := p.FulfillmentParam(externalID); param != nil {
		return param.String()
	}
	return ""
}

// SetFulfillment stores a text fulfillment value, adding the parameter when missing.
func (p *Parameters) SetFulfillment(externalID, value string) {
	raw, _ := json.Marshal(value)
	if param := p.FulfillmentParam(externalID); param != nil {
		param.Value = raw
		return
	}
	p.Fulfillment = append(p.Fulfillment, Parameter{ExternalID: externalID, Value: raw})
}

// SetOrdering stores any JSON encodable ordering value, adding the parameter when missing.
func (p *Parameters) SetOrdering(externalID string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if param := p.OrderingParam(externalID); param != nil {
		param.Value = raw
		return nil
	}
	p.Ordering = append(p.Ordering, Parameter{ExternalID: externalID, Value: raw})
	return nil
}

// SetOrderingError attaches a validation error to an ordering parameter.
func (p *Parameters) SetOrderingError(externalID string, perr ParameterError) {
	if param := p.OrderingParam(externalID); param != nil {
		param.Error = &perr
		return
	}
	p.Ordering = append(p.Ordering, Parameter{ExternalID: externalID, Error: &perr})
}

// ResetOrderingErrors clears validation errors left by a previous pass.
func (p *Parameters) ResetOrderingErrors() {
	for i := range p.Ordering {
		p.Ordering[i].Error = nil
	}
}

// HasErrors reports whether any ordering parameter carries a validation error.
func (p *Parameters) HasErrors() bool {
	for _, param := range p.Ordering {
		if param.Error != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate.
func (p Parameters) Clone() Parameters {
	clone := Parameters{
		Ordering:    make([]Parameter, len(p.Ordering)),
		Fulfillment: make([]Parameter, len(p.Fulfillment)),
	}
	copy(clone.Ordering, p.Ordering)
	copy(clone.Fulfillment, p.Fulfillment)
	for i := range clone.Ordering {
		if e := clone.Ordering[i].Error; e != nil {
			errCopy := *e
			clone.Ordering[i].Error = &errCopy
		}
	}
	return clone
}

// Address is the structured value of the address ordering parameter.
type Address struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostCode     string `json:"postCode"`
	Country      string `json:"country"`
}

// Contact is the structured value of the contact ordering parameter.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}
