// Package persona defines the block-structured persona record (spec §3) and
// the closed field->block ownership map the projector (C8) consults.
package persona

import "time"

// BlockName identifies one of the twelve persona blocks.
type BlockName string

const (
	BlockUserIdentity     BlockName = "user_identity"
	BlockCompanyProfile   BlockName = "company_profile"
	BlockCompanyBusiness  BlockName = "company_business"
	BlockCompanyProducts  BlockName = "company_products"
	BlockCompanyBrand     BlockName = "company_brand"
	BlockObjective        BlockName = "objective"
	BlockContentFormat    BlockName = "content_format"
	BlockAudience         BlockName = "audience"
	BlockTone             BlockName = "tone"
	BlockWritingStyle     BlockName = "writing_style"
	BlockLanguage         BlockName = "language"
	BlockConstraints      BlockName = "constraints"
)

// AllBlocks lists every block name in the fixed persistence order, used when
// serializing a Persona row.
var AllBlocks = []BlockName{
	BlockUserIdentity, BlockCompanyProfile, BlockCompanyBusiness,
	BlockCompanyProducts, BlockCompanyBrand, BlockObjective,
	BlockContentFormat, BlockAudience, BlockTone, BlockWritingStyle,
	BlockLanguage, BlockConstraints,
}

// Block is a sparse set of named fields plus the internal confidence used
// only during merge decisions — never surfaced to the model.
type Block struct {
	Fields     map[string]any `json:"fields"`
	Confidence float64        `json:"-"`
}

// IsEmpty reports whether a block has zero surviving fields, in which case
// the projector omits it entirely (spec §4.2).
func (b Block) IsEmpty() bool {
	return len(b.Fields) == 0
}

// Persona is one row per user: a sparse map of block name to block content.
// A block absent from Blocks means "not yet learned", not "empty".
type Persona struct {
	UserID      string
	Blocks      map[BlockName]Block
	LastUpdated time.Time
}

// FieldBlockMap is the closed field->block ownership table the projector
// uses to route a committed field into its owning block (spec §4.2: "a
// closed field->block map dictates which block owns each field").
var FieldBlockMap = map[string]BlockName{
	"name":              BlockUserIdentity,
	"role":              BlockUserIdentity,
	"seniority":         BlockUserIdentity,
	"industry":          BlockCompanyProfile,
	"company_size":      BlockCompanyProfile,
	"company_stage":     BlockCompanyProfile,
	"business_model":    BlockCompanyBusiness,
	"revenue_model":     BlockCompanyBusiness,
	"product_name":      BlockCompanyProducts,
	"product_category":  BlockCompanyProducts,
	"brand_voice":       BlockCompanyBrand,
	"brand_values":      BlockCompanyBrand,
	"objective":         BlockObjective,
	"goal_horizon":      BlockObjective,
	"format":            BlockContentFormat,
	"length_preference": BlockContentFormat,
	"audience":          BlockAudience,
	"audience_segment":  BlockAudience,
	"tone":              BlockTone,
	"writing_style":     BlockWritingStyle,
	"vocabulary_level":  BlockWritingStyle,
	"language":          BlockLanguage,
	"constraints":       BlockConstraints,
}

// BlockFor resolves the owning block for a committed field name. ok is
// false for a field absent from the closed map.
func BlockFor(field string) (BlockName, bool) {
	b, ok := FieldBlockMap[field]
	return b, ok
}
