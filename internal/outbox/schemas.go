package outbox

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "quantity": {"type": "number"},
    "emission_amount": {"type": "number"},
    "factor_used": {"type": "number"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "activity_type", "quantity", "emission_amount", "factor_used", "occurred_at", "recorded_at"],
  "additionalProperties": false
}`
