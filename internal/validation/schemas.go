package validation

// Field names shared by the dashboard forms and the backend payloads.
const (
	FieldName             = "name"
	FieldEmail            = "email"
	FieldPhone            = "phone"
	FieldDateOfBirth      = "date_of_birth"
	FieldAddress          = "address"
	FieldEmergencyContact = "emergency_contact"
	FieldEmergencyPhone   = "emergency_phone"
	FieldNotes            = "notes"
	FieldStatus           = "status"
	FieldClientID         = "client_id"
	FieldTime             = "time"
	FieldFrequency        = "frequency"
	FieldCount            = "count"
)

var (
	clientStatuses      = []string{"active", "inactive", "pending"}
	appointmentStatuses = []string{"scheduled", "completed", "cancelled", "no-show"}
	frequencies         = []string{"daily", "weekly", "monthly"}
)

// ClientSchema validates the client create and edit form.
func ClientSchema(clock Clock) Schema {
	return Schema{
		{Name: FieldName, Rules: []Rule{Required, MinLength(2), MaxLength(100)}},
		{Name: FieldEmail, Rules: []Rule{Required, Email}},
		{Name: FieldPhone, Rules: []Rule{Phone}},
		{Name: FieldDateOfBirth, Rules: []Rule{Date, PastDate(clock)}},
		{Name: FieldAddress, Rules: []Rule{MaxLength(500)}},
		{Name: FieldEmergencyContact, Rules: []Rule{MaxLength(100)}},
		{Name: FieldEmergencyPhone, Rules: []Rule{Phone}},
		{Name: FieldNotes, Rules: []Rule{MaxLength(1000)}},
		{Name: FieldStatus, Rules: []Rule{OneOf(clientStatuses...)}},
	}
}

// AppointmentSchema validates scheduling a new appointment.
func AppointmentSchema(clock Clock) Schema {
	return Schema{
		{Name: FieldClientID, Rules: []Rule{Required}},
		{Name: FieldTime, Rules: []Rule{Required, Date, FutureDate(clock)}},
		{Name: FieldStatus, Rules: []Rule{OneOf(appointmentStatuses...)}},
		{Name: FieldNotes, Rules: []Rule{MaxLength(1000)}},
	}
}

// AppointmentUpdateSchema is AppointmentSchema without the future-date
// rule; past appointments must stay editable to record their outcome.
func AppointmentUpdateSchema() Schema {
	return Schema{
		{Name: FieldClientID, Rules: []Rule{Required}},
		{Name: FieldTime, Rules: []Rule{Required, Date}},
		{Name: FieldStatus, Rules: []Rule{OneOf(appointmentStatuses...)}},
		{Name: FieldNotes, Rules: []Rule{MaxLength(1000)}},
	}
}

// RecurringSchema validates the recurrence pattern of a batch.
func RecurringSchema() Schema {
	return Schema{
		{Name: FieldFrequency, Rules: []Rule{Required, OneOf(frequencies...)}},
		{Name: FieldCount, Rules: []Rule{Required, IntRange(1, 52)}},
	}
}
