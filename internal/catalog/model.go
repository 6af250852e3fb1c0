package catalog

import "time"

// Option is one selectable choice within a module (a content type, an
// analysis depth, ...). At most one option per category may be selected.
type Option struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Category    string  `json:"category"`
	Multiplier  float64 `json:"multiplier,omitempty"`
	FlatAdd     int     `json:"flatAdd,omitempty"`
	PremiumOnly bool    `json:"premiumOnly,omitempty"`
	FeatureArea string  `json:"featureArea,omitempty"`
}

// Flag is a boolean feature toggle with a declared cost effect.
// Multipliers compose multiplicatively in declaration order; flat adds
// are summed after all multiplicative steps.
type Flag struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Multiplier  float64 `json:"multiplier,omitempty"`
	FlatAdd     int     `json:"flatAdd,omitempty"`
	PremiumOnly bool    `json:"premiumOnly,omitempty"`
	FeatureArea string  `json:"featureArea,omitempty"`
}

// QuantityDim is a quantity-scaled pricing dimension: units beyond the
// free threshold are charged per bucket.
type QuantityDim struct {
	Field         string  `json:"field"`
	Label         string  `json:"label"`
	FreeThreshold int     `json:"freeThreshold"`
	BucketSize    int     `json:"bucketSize"`
	PerBucketCost float64 `json:"perBucketCost"`
	CeilingKind   string  `json:"ceilingKind,omitempty"`
}

// AttachmentPolicy declares what reference files a module accepts.
type AttachmentPolicy struct {
	AllowedTypes []string `json:"allowedTypes"`
	MaxSizeBytes int64    `json:"maxSizeBytes"`
	MaxCount     int      `json:"maxCount"`
	// RequiredFor names the specification field satisfied by an upload,
	// if the module requires one.
	RequiredFor string `json:"requiredFor,omitempty"`
}

// ModuleDescriptor is the read-only per-module configuration: pricing
// table, option tables and attachment rules. The engine never writes it.
type ModuleDescriptor struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	BaseCost       int              `json:"baseCost"`
	MinimumCost    int              `json:"minimumCost"`
	Options        []Option         `json:"options,omitempty"`
	Flags          []Flag           `json:"flags,omitempty"`
	QuantityDims   []QuantityDim    `json:"quantityDims,omitempty"`
	RequiredFields []string         `json:"requiredFields,omitempty"`
	Attachments    AttachmentPolicy `json:"attachments"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// OptionByID returns the option with the given id.
func (d ModuleDescriptor) OptionByID(id string) (Option, bool) {
	for _, opt := range d.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// FlagByID returns the flag with the given id.
func (d ModuleDescriptor) FlagByID(id string) (Flag, bool) {
	for _, f := range d.Flags {
		if f.ID == id {
			return f, true
		}
	}
	return Flag{}, false
}

// DimByField returns the quantity dimension bound to a specification field.
func (d ModuleDescriptor) DimByField(field string) (QuantityDim, bool) {
	for _, dim := range d.QuantityDims {
		if dim.Field == field {
			return dim, true
		}
	}
	return QuantityDim{}, false
}

// AllowsMediaType reports whether the policy accepts the declared type.
func (p AttachmentPolicy) AllowsMediaType(mediaType string) bool {
	for _, t := range p.AllowedTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}
