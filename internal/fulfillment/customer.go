package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

const defaultPreferredLanguage = "en-US"

// customerData collects the account profile from the ordering parameters, back-filling the
// missing ones from the buyer. It reports whether any parameter was back-filled.
func (f *flow) customerData(ctx context.Context, order *model.Order) (model.CustomerData, bool, error) {
	data := model.CustomerData{
		CompanyName:       order.Parameters.OrderingValue(model.ParamCompanyName),
		PreferredLanguage: order.Parameters.OrderingValue(model.ParamPreferredLanguage),
	}
	var hasAddress, hasContact bool
	if p := order.Parameters.OrderingParam(model.ParamAddress); p != nil && len(p.Value) > 0 {
		if err := p.Decode(&data.Address); err != nil {
			return data, false, fmt.Errorf("decode address: %w", err)
		}
		hasAddress = data.Address.Country != ""
	}
	if p := order.Parameters.OrderingParam(model.ParamContact); p != nil && len(p.Value) > 0 {
		if err := p.Decode(&data.Contact); err != nil {
			return data, false, fmt.Errorf("decode contact: %w", err)
		}
		hasContact = data.Contact.Email != ""
	}

	if data.CompanyName != "" && data.PreferredLanguage != "" && hasAddress && hasContact {
		return data, false, nil
	}

	buyer, err := f.mpt.GetBuyer(ctx, order.Buyer.ID)
	if err != nil {
		return data, false, fmt.Errorf("get buyer %s: %w", order.Buyer.ID, err)
	}
	if data.CompanyName == "" {
		data.CompanyName = buyer.Name
		if err := order.Parameters.SetOrdering(model.ParamCompanyName, data.CompanyName); err != nil {
			return data, false, err
		}
	}
	if data.PreferredLanguage == "" {
		data.PreferredLanguage = defaultPreferredLanguage
		if err := order.Parameters.SetOrdering(model.ParamPreferredLanguage, data.PreferredLanguage); err != nil {
			return data, false, err
		}
	}
	if !hasAddress {
		data.Address = buyer.Address
		if err := order.Parameters.SetOrdering(model.ParamAddress, data.Address); err != nil {
			return data, false, err
		}
	}
	if !hasContact {
		data.Contact = buyer.Contact
		if err := order.Parameters.SetOrdering(model.ParamContact, data.Contact); err != nil {
			return data, false, err
		}
	}
	return data, true, nil
}

// createCustomer creates the backend customer account of a purchase order. When the account
// cannot be created the returned outcome is the terminal action already taken.
func (f *flow) createCustomer(ctx context.Context, order *model.Order) (string, *Outcome, error) {
	data, backfilled, err := f.customerData(ctx, order)
	if err != nil {
		return "", nil, err
	}
	if backfilled {
		if err := f.saveParameters(ctx, order); err != nil {
			return "", nil, err
		}
	}

	customer, err := f.vipm.CreateCustomerAccount(ctx, order.Authorization.ID, sellerID(order), order.Agreement.ID, data)
	if err != nil {
		out, ferr := f.customerError(ctx, order, err)
		return "", &out, ferr
	}

	order.Parameters.SetFulfillment(model.ParamCustomerID, customer.CustomerID)
	if err := f.saveParameters(ctx, order); err != nil {
		return "", nil, err
	}
	f.orderLogger(order).Info("customer account created", slog.String("customer", customer.CustomerID))
	return customer.CustomerID, nil, nil
}

// customerError maps account creation errors onto ordering parameters.
func (f *flow) customerError(ctx context.Context, order *model.Order, err error) (Outcome, error) {
	be, ok := domainErrors.AsBackend(err)
	if !ok {
		return Outcome{}, err
	}
	order.Parameters.ResetOrderingErrors()

	switch be.Code {
	case vipm.CodeInvalidAddress:
		reason := setParamError(order, model.ParamAddress, errAddress, be.Error())
		return f.query(ctx, order, reason)
	case vipm.CodeInvalidFields:
		var reasons []string
		for _, detail := range be.Details {
			param, tpl, ok := fieldParameter(detail)
			if !ok {
				continue
			}
			reasons = append(reasons, setParamError(order, param, tpl, be.Message))
		}
		if len(reasons) == 0 {
			return f.fail(ctx, order, be.Error())
		}
		return f.query(ctx, order, strings.Join(reasons, " "))
	default:
		return f.fail(ctx, order, be.Error())
	}
}

// fieldParameter maps a backend field path to the ordering parameter carrying it.
func fieldParameter(path string) (string, paramErrorTemplate, bool) {
	switch {
	case strings.Contains(path, "companyProfile.companyName"):
		return model.ParamCompanyName, errCompanyName, true
	case strings.Contains(path, "companyProfile.preferredLanguage"):
		return model.ParamPreferredLanguage, errLanguage, true
	case strings.Contains(path, "companyProfile.contacts[0]"):
		return model.ParamContact, errContact, true
	default:
		return "", paramErrorTemplate{}, false
	}
}
