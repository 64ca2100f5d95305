package fulfillment

import (
	"fmt"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// Customer-facing messages.
const (
	msgAlreadyMigrated    = "Membership has already been migrated."
	msgMigrationRunning   = "Migration in progress, retry later"
	msgMembershipNotFound = "Membership not found"
	msgUnexpectedError    = "Unexpected error"
)

// paramErrorTemplate renders a validation error attached to an ordering parameter.
type paramErrorTemplate struct {
	id     string
	format string
}

var (
	errMembershipID   = paramErrorTemplate{"VIPM0010", "The `%s` is not valid: %s."}
	errMembershipItem = paramErrorTemplate{"VIPM0011", "The `%s` contains the item with SKU `%s` that is not part of the product definition."}
	errAddress        = paramErrorTemplate{"VIPM0012", "The `%s` is not valid: %s."}
	errCompanyName    = paramErrorTemplate{"VIPM0013", "The `%s` is not valid: %s."}
	errLanguage       = paramErrorTemplate{"VIPM0014", "The `%s` is not valid: %s."}
	errContact        = paramErrorTemplate{"VIPM0015", "The `%s` is not valid: %s."}
)

func (t paramErrorTemplate) render(title, detail string) model.ParameterError {
	return model.ParameterError{ID: t.id, Message: fmt.Sprintf(t.format, title, detail)}
}

// setParamError attaches the rendered error to the ordering parameter, titled by its display name.
func setParamError(order *model.Order, externalID string, tpl paramErrorTemplate, detail string) string {
	title := externalID
	if param := order.Parameters.OrderingParam(externalID); param != nil && param.Name != "" {
		title = param.Name
	}
	perr := tpl.render(title, detail)
	order.Parameters.SetOrderingError(externalID, perr)
	return perr.Message
}

func duplicateItemsReason(itemID string) string {
	return fmt.Sprintf("The order cannot contain multiple lines for the same item: %s.", itemID)
}

func existingItemsReason(itemID string) string {
	return fmt.Sprintf("The order cannot contain new lines for an existing item: %s.", itemID)
}

func unexpectedStatusReason(status string) string {
	return fmt.Sprintf("Unexpected status (%s) received from Adobe.", status)
}
