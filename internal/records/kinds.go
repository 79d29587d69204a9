package records

import (
	"strings"

	"github.com/kiranshivaraju/eoex/pkg/models"
	"github.com/kiranshivaraju/eoex/pkg/query"
)

// FieldType is the type a caller-supplied value is coerced to before binding.
type FieldType int

const (
	String FieldType = iota
	Integer
	Number
	UUID
	Timestamp
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case UUID:
		return "uuid"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Field is a caller-writable column.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Default is applied on create when the field is absent. A field with
	// a default cannot be set to null.
	Default any
	// NotNull forbids null for an optional field whose default is set by
	// the database.
	NotNull bool
}

func (f Field) nullable() bool {
	return !f.Required && f.Default == nil && !f.NotNull
}

// Kind describes one tenant-scoped record table.
type Kind struct {
	// Name is the plural used in routes, metrics and the overview.
	Name   string
	Schema query.Schema
	Fields []Field
	// Stamp sets server-controlled columns on create after caller values
	// have been validated.
	Stamp func(ac models.AuthContext, values map[string]any)
}

func (k *Kind) field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FilterNames lists the filter fields a caller may use on this kind.
func (k *Kind) FilterNames() []string {
	names := make([]string, 0, len(k.Schema.Filters))
	for name := range k.Schema.Filters {
		names = append(names, name)
	}
	return names
}

func fieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func newKind(name string, schema query.Schema, fields []Field, stamped []string, stamp func(models.AuthContext, map[string]any)) *Kind {
	schema.Updatable = fieldNames(fields)
	schema.Insertable = append(fieldNames(fields), stamped...)
	if err := schema.Validate(); err != nil {
		panic(err)
	}
	return &Kind{Name: name, Schema: schema, Fields: fields, Stamp: stamp}
}

var (
	eq       = []query.Operator{query.OpEq}
	contains = []query.Operator{query.OpContains}
)

var Contacts = newKind("contacts",
	query.Schema{
		Table:    "crm_contacts",
		IDColumn: "contact_id",
		Columns:  []string{"contact_id", "tenant_id", "first_name", "last_name", "email", "phone", "company", "status", "created_at"},
		Filters: map[string]query.Filterable{
			"search": {Columns: []string{"first_name", "last_name", "email"}, Ops: contains},
			"status": {Columns: []string{"status"}, Ops: eq},
		},
		OrderBy: "created_at",
	},
	[]Field{
		{Name: "first_name", Type: String, Required: true},
		{Name: "last_name", Type: String, Required: true},
		{Name: "email", Type: String},
		{Name: "phone", Type: String},
		{Name: "company", Type: String},
		{Name: "status", Type: String, Default: "new"},
	},
	nil, nil,
)

var Products = newKind("products",
	query.Schema{
		Table:    "erp_products",
		IDColumn: "product_id",
		Columns:  []string{"product_id", "tenant_id", "sku", "name", "description", "category", "unit_price", "stock_quantity", "created_at"},
		Filters: map[string]query.Filterable{
			"search":   {Columns: []string{"name", "sku"}, Ops: contains},
			"category": {Columns: []string{"category"}, Ops: eq},
		},
		OrderBy: "created_at",
	},
	[]Field{
		{Name: "sku", Type: String, Required: true},
		{Name: "name", Type: String, Required: true},
		{Name: "description", Type: String},
		{Name: "category", Type: String},
		{Name: "unit_price", Type: Number, Required: true},
		{Name: "stock_quantity", Type: Integer, Default: int64(0)},
	},
	nil, nil,
)

var Orders = newKind("orders",
	query.Schema{
		Table:    "erp_orders",
		IDColumn: "order_id",
		Columns:  []string{"order_id", "tenant_id", "order_number", "contact_id", "status", "total_amount", "order_date", "created_at"},
		Filters: map[string]query.Filterable{
			"status": {Columns: []string{"status"}, Ops: eq},
		},
		OrderBy: "order_date",
	},
	[]Field{
		{Name: "order_number", Type: String, Required: true},
		{Name: "contact_id", Type: UUID},
		{Name: "status", Type: String, Default: "pending"},
		{Name: "total_amount", Type: Number, Default: float64(0)},
		{Name: "order_date", Type: Timestamp, NotNull: true},
	},
	nil, nil,
)

var Campaigns = newKind("campaigns",
	query.Schema{
		Table:    "studio_campaigns",
		IDColumn: "campaign_id",
		Columns:  []string{"campaign_id", "tenant_id", "name", "campaign_type", "status", "budget", "created_by", "created_at"},
		Filters: map[string]query.Filterable{
			"status":        {Columns: []string{"status"}, Ops: eq},
			"campaign_type": {Columns: []string{"campaign_type"}, Ops: eq},
		},
		OrderBy: "created_at",
	},
	[]Field{
		{Name: "name", Type: String, Required: true},
		{Name: "campaign_type", Type: String, Required: true},
		{Name: "status", Type: String, Default: "draft"},
		{Name: "budget", Type: Number},
	},
	[]string{"created_by"},
	func(ac models.AuthContext, values map[string]any) {
		values["created_by"] = ac.UserID
	},
)

var Tickets = newKind("tickets",
	query.Schema{
		Table:    "support_tickets",
		IDColumn: "ticket_id",
		Columns:  []string{"ticket_id", "tenant_id", "ticket_number", "subject", "description", "priority", "status", "assigned_to", "created_at"},
		Filters: map[string]query.Filterable{
			"status":   {Columns: []string{"status"}, Ops: eq},
			"priority": {Columns: []string{"priority"}, Ops: eq},
			"search":   {Columns: []string{"subject"}, Ops: contains},
		},
		OrderBy: "created_at",
	},
	[]Field{
		{Name: "subject", Type: String, Required: true},
		{Name: "description", Type: String, Required: true},
		{Name: "priority", Type: String, Default: "medium"},
		{Name: "status", Type: String, Default: "open"},
	},
	[]string{"ticket_number", "assigned_to"},
	func(ac models.AuthContext, values map[string]any) {
		subject, _ := values["subject"].(string)
		values["ticket_number"] = TicketNumber(ac.UserID.String(), subject)
		values["assigned_to"] = ac.UserID
	},
)

// All lists every record kind in overview order.
var All = []*Kind{Contacts, Products, Orders, Campaigns, Tickets}

// TicketNumber derives TKT-<user prefix>-<SUBJECT PREFIX> from the first
// six characters of each.
func TicketNumber(userID, subject string) string {
	return "TKT-" + prefix(userID, 6) + "-" + strings.ToUpper(prefix(subject, 6))
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
