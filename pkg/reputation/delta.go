package reputation

// ComputeDelta implements the reputation weight scaling rules: donation and
// cheer events scale the resolved weight by the metadata amount/bits rather
// than applying it flat, grounded on the reputation module's
// donation_per_dollar/cheer_per_100bits weight semantics.
//
// eventName is the resolved weight-table key (see EventName), not the raw
// envelope event_type.
func ComputeDelta(eventName string, weight float64, meta map[string]any) float64 {
	switch eventName {
	case "donation_per_dollar":
		if amount, ok := metadataFloat(meta, "amount"); ok {
			return weight * amount
		}
	case "cheer_per_100bits":
		if bits, ok := metadataFloat(meta, "bits"); ok {
			return weight * (bits / 100)
		}
	}
	return weight
}
