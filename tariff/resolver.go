package tariff

import (
	"regexp"
	"strings"
	"time"

	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
)

// RateTable is the lookup surface of the persisted rate store. Keys are
// normalized category keys, optionally prefixed with a lowercase ISO2 country
// code and " | ". Resolution never fails: a missing key degrades to the
// computed default ladder below.
type RateTable interface {
	Lookup(key string) (decimal.Decimal, bool)
}

// StaticRateTable is a map-backed RateTable, used in tests and for preloaded
// lookups during bulk recomputation.
type StaticRateTable map[string]decimal.Decimal

func (t StaticRateTable) Lookup(key string) (decimal.Decimal, bool) {
	rate, ok := t[key]
	return rate, ok
}

const (
	FabricCottonRich = "cotton-rich"
	FabricPolyRich   = "poly-rich"
	FabricMixed      = "mixed"
)

const (
	GroupJunior  = "junior"
	GroupKids    = "kids"
	GroupMens    = "mens"
	GroupWomens  = "womens"
	GroupGeneral = "general"
)

const (
	TypeTee       = "tee"
	TypeTop       = "top"
	TypeTank      = "tank"
	TypeDress     = "dress"
	TypeLeggings  = "leggings"
	TypeShorts    = "shorts"
	TypePants     = "pants"
	TypeJacket    = "jacket"
	TypeAccessory = "accessory"
	TypeApparel   = "apparel"
)

// Origin surcharge: flat add-on applied once per resolution for China-sourced goods.
var originSurchargeCN = decimal.NewFromFloat(0.075)

// StaleAfter is how long a synced rate row stays fresh before the scheduled
// sweep recomputes it.
const StaleAfter = 30 * 24 * time.Hour

// NormalizeKey lowercases and collapses whitespace. Every key comparison in
// this package goes through it.
func NormalizeKey(text string) string {
	return utils.CollapseWhitespace(text)
}

type originRule struct {
	country  string
	keywords []string
}

// Ordered: first match wins. Default is CN when nothing matches, since the
// bulk of the supplier base ships from China.
var originRules = []originRule{
	{"VN", []string{"vietnam", "viet nam", "hanoi", "ho chi minh", "haiphong", "da nang"}},
	{"BD", []string{"bangladesh", "dhaka", "chittagong", "gazipur"}},
	{"IN", []string{"india", "mumbai", "new delhi", "tirupur", "chennai", "ludhiana"}},
	{"ID", []string{"indonesia", "jakarta", "bandung", "surabaya"}},
	{"KH", []string{"cambodia", "phnom penh", "sihanoukville"}},
	{"TR", []string{"turkey", "turkiye", "istanbul", "izmir", "bursa"}},
	{"CN", []string{"china", "prc", "shanghai", "shenzhen", "guangzhou", "ningbo", "hangzhou", "qingdao", "dongguan", "xiamen", "yiwu"}},
}

// InferOriginCountry scans supplier name + address against a fixed ordered
// keyword table. Deterministic, no external calls.
func InferOriginCountry(supplierName, supplierAddress string) string {
	haystack := NormalizeKey(supplierName + " " + supplierAddress)
	for _, rule := range originRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.country
			}
		}
	}
	return "CN"
}

var (
	// "95% cotton", "60 % poly", "poly 40%", "cotton: 50%"
	pctBeforeFabric = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*(cotton|poly(?:ester)?)`)
	pctAfterFabric  = regexp.MustCompile(`(cotton|poly(?:ester)?)\s*:?\s*(\d+(?:\.\d+)?)\s*%`)
)

// DetectFabricBucket classifies material text into cotton-rich / poly-rich /
// mixed. Explicit percentage ratios win; the shares for each fiber are summed
// across all matches and the majority (>=50%) takes the bucket. Ties and
// missing ratios fall back to bare keyword presence. No ratios and no
// keywords means mixed.
func DetectFabricBucket(materialText string) string {
	text := NormalizeKey(materialText)
	if text == "" {
		return FabricMixed
	}

	cottonPct := decimal.Zero
	polyPct := decimal.Zero
	sawRatio := false

	for _, m := range pctBeforeFabric.FindAllStringSubmatch(text, -1) {
		pct, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		sawRatio = true
		if strings.HasPrefix(m[2], "cotton") {
			cottonPct = cottonPct.Add(pct)
		} else {
			polyPct = polyPct.Add(pct)
		}
	}
	for _, m := range pctAfterFabric.FindAllStringSubmatch(text, -1) {
		pct, err := decimal.NewFromString(m[2])
		if err != nil {
			continue
		}
		sawRatio = true
		if strings.HasPrefix(m[1], "cotton") {
			cottonPct = cottonPct.Add(pct)
		} else {
			polyPct = polyPct.Add(pct)
		}
	}

	half := decimal.NewFromInt(50)
	if sawRatio {
		if cottonPct.GreaterThanOrEqual(half) && cottonPct.GreaterThan(polyPct) {
			return FabricCottonRich
		}
		if polyPct.GreaterThanOrEqual(half) && polyPct.GreaterThan(cottonPct) {
			return FabricPolyRich
		}
		// Tie or both below majority: fall through to keyword heuristic.
	}

	hasCotton := strings.Contains(text, "cotton")
	hasPoly := strings.Contains(text, "poly")
	switch {
	case hasCotton && !hasPoly:
		return FabricCottonRich
	case hasPoly && !hasCotton:
		return FabricPolyRich
	default:
		return FabricMixed
	}
}

type keywordRule struct {
	category string
	pattern  *regexp.Regexp
}

// Ordered cascades: first matching rule wins, last entry is the catch-all.
// The rule order is load-bearing for multi-keyword descriptions and must not
// be reordered.
var lifecycleRules = []keywordRule{
	{GroupJunior, regexp.MustCompile(`\b(junior|juniors|teen|teens|girls 7-16|boys 8-20)\b`)},
	{GroupKids, regexp.MustCompile(`\b(kid|kids|toddler|toddlers|boys|girls|baby|infant|youth)\b`)},
	{GroupMens, regexp.MustCompile(`\b(men|mens|men's|male)\b`)},
	{GroupWomens, regexp.MustCompile(`\b(women|womens|women's|ladies|lady|misses)\b`)},
}

var productTypeRules = []keywordRule{
	{TypeTee, regexp.MustCompile(`\b(tee|tees|t-shirt|t-shirts|t shirt|tshirt)\b`)},
	{TypeTop, regexp.MustCompile(`\b(top|tops|blouse|shirt|shirts)\b`)},
	{TypeTank, regexp.MustCompile(`\b(tank|tanks|cami|camisole)\b`)},
	{TypeDress, regexp.MustCompile(`\b(dress|dresses|gown|skirt)\b`)},
	{TypeLeggings, regexp.MustCompile(`\b(legging|leggings|tights)\b`)},
	{TypeShorts, regexp.MustCompile(`\b(short|shorts)\b`)},
	{TypePants, regexp.MustCompile(`\b(pant|pants|jogger|joggers|trouser|trousers|sweatpant|sweatpants)\b`)},
	{TypeJacket, regexp.MustCompile(`\b(jacket|jackets|hoodie|hoodies|coat|cardigan|sweater|outerwear)\b`)},
	{TypeAccessory, regexp.MustCompile(`\b(hat|cap|bag|belt|scarf|sock|socks|headband|beanie|glove|gloves)\b`)},
}

func classifyByRules(text string, rules []keywordRule, fallback string) string {
	normalized := NormalizeKey(text)
	for _, rule := range rules {
		if rule.pattern.MatchString(normalized) {
			return rule.category
		}
	}
	return fallback
}

// ClassifyLifecycleGroup buckets description+collection text into a customer
// lifecycle group. First match wins; "general" is the catch-all.
func ClassifyLifecycleGroup(description, collection string) string {
	return classifyByRules(description+" "+collection, lifecycleRules, GroupGeneral)
}

// ClassifyProductType buckets the description into a garment type with
// "apparel" as the catch-all.
func ClassifyProductType(description string) string {
	return classifyByRules(description, productTypeRules, TypeApparel)
}

// ItemAttributes is the free-text surface classification operates on.
// The fields come straight from PO extraction, quality unguaranteed.
type ItemAttributes struct {
	Description string
	Collection  string
	Material    string
}

// DeriveTariffKey composes the category key used for default-rate computation
// and table lookup: "{lifecycleGroup} {productType} | {fabricBucket}", with
// the lifecycle prefix omitted for the general group.
func DeriveTariffKey(item ItemAttributes) string {
	group := ClassifyLifecycleGroup(item.Description, item.Collection)
	productType := ClassifyProductType(item.Description)
	fabric := DetectFabricBucket(item.Material)

	category := productType
	if group != GroupGeneral {
		category = group + " " + productType
	}
	return NormalizeKey(category + " | " + fabric)
}

type baseRateRow struct {
	match  string // substring matched against the category portion of the key
	cotton float64
	poly   float64
	mixed  float64
}

// Base ad-valorem duty rates by (category substring, fabric bucket). Ordered:
// first matching row wins. Values track the HTS chapters 61/62 bands the
// business actually imports under.
var baseRateRows = []baseRateRow{
	{"tee", 0.22, 0.25, 0.235},
	{"tank", 0.22, 0.25, 0.235},
	{"top", 0.23, 0.26, 0.245},
	{"dress", 0.24, 0.26, 0.25},
	{"jacket", 0.24, 0.26, 0.25},
	{"leggings", 0.21, 0.24, 0.225},
	{"shorts", 0.21, 0.24, 0.225},
	{"pants", 0.21, 0.24, 0.225},
	{"accessory", 0.15, 0.15, 0.15},
}

// Generic fallback by fabric bucket only.
var genericBaseRates = map[string]float64{
	FabricCottonRich: 0.20,
	FabricPolyRich:   0.23,
	FabricMixed:      0.215,
}

// DefaultBaseRate computes the table-free base rate for a category key.
func DefaultBaseRate(categoryKey string) decimal.Decimal {
	key := NormalizeKey(categoryKey)
	category := key
	fabric := FabricMixed
	if idx := strings.LastIndex(key, "|"); idx >= 0 {
		category = strings.TrimSpace(key[:idx])
		fabric = strings.TrimSpace(key[idx+1:])
	}
	if _, ok := genericBaseRates[fabric]; !ok {
		fabric = FabricMixed
	}

	for _, row := range baseRateRows {
		if strings.Contains(category, row.match) {
			switch fabric {
			case FabricCottonRich:
				return decimal.NewFromFloat(row.cotton)
			case FabricPolyRich:
				return decimal.NewFromFloat(row.poly)
			default:
				return decimal.NewFromFloat(row.mixed)
			}
		}
	}
	return decimal.NewFromFloat(genericBaseRates[fabric])
}

// ApplyOriginSurcharge adds the flat CN surcharge, clamps to [0,1] and rounds
// to 4 decimal places. Applied exactly once per resolution.
func ApplyOriginSurcharge(baseRate decimal.Decimal, country string) decimal.Decimal {
	rate := baseRate
	if strings.EqualFold(strings.TrimSpace(country), "CN") {
		rate = rate.Add(originSurchargeCN)
	}
	return utils.RoundRate(utils.ClampRate(rate))
}

// ResolveTariffRate resolves an effective duty rate for a category key and an
// origin country through a three-tier ladder:
//
//	tier 1: exact "{country} | {categoryKey}" row, used verbatim
//	tier 2: bare categoryKey row, origin surcharge applied on top
//	tier 3: computed DefaultBaseRate + surcharge
//
// Country-specific overrides beat category-wide rows, which beat computed
// defaults. matchedKey is empty when the rate was computed (tier 3).
func ResolveTariffRate(categoryKey, originCountry string, table RateTable) (rate decimal.Decimal, matchedKey string) {
	key := NormalizeKey(categoryKey)
	country := strings.ToLower(strings.TrimSpace(originCountry))

	if country != "" {
		countryKey := country + " | " + key
		if stored, ok := table.Lookup(countryKey); ok {
			return utils.RoundRate(utils.ClampRate(stored)), countryKey
		}
	}
	if stored, ok := table.Lookup(key); ok {
		return ApplyOriginSurcharge(stored, originCountry), key
	}
	return ApplyOriginSurcharge(DefaultBaseRate(key), originCountry), ""
}

// DefaultRateForStoredKey recomputes the synced default for a stored rate-table
// key. Country-prefixed keys get the surcharge for their prefix; bare keys stay
// surcharge-free because resolution adds it at lookup time (tier 2).
func DefaultRateForStoredKey(storedKey string) decimal.Decimal {
	key := NormalizeKey(storedKey)
	parts := strings.SplitN(key, " | ", 2)
	if len(parts) == 2 && len(parts[0]) == 2 {
		return ApplyOriginSurcharge(DefaultBaseRate(parts[1]), parts[0])
	}
	return utils.RoundRate(utils.ClampRate(DefaultBaseRate(key)))
}

// IsRateStale reports whether a synced row is due for recomputation. The
// current time is a parameter so the predicate stays deterministic in tests.
func IsRateStale(updatedAt, now time.Time) bool {
	return now.Sub(updatedAt) > StaleAfter
}
