package tariff_test

import (
	"testing"
	"time"

	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestInferOriginCountry(t *testing.T) {
	cases := []struct {
		name, address, want string
	}{
		{"Hanoi Textiles Co", "Industrial Zone 4, Vietnam", "VN"},
		{"Dhaka Garments Ltd", "Gazipur", "BD"},
		{"Tirupur Knitwear", "Tamil Nadu, India", "IN"},
		{"Shanghai Knits", "", "CN"},
		{"Acme Apparel", "PO Box 12", "CN"}, // no keyword: default
		{"ISTANBUL EXPORT", "", "TR"},       // case-insensitive
	}
	for _, tc := range cases {
		if got := tariff.InferOriginCountry(tc.name, tc.address); got != tc.want {
			t.Errorf("InferOriginCountry(%q, %q) = %q, want %q", tc.name, tc.address, got, tc.want)
		}
	}
}

func TestDetectFabricBucket(t *testing.T) {
	cases := []struct {
		material, want string
	}{
		{"100% cotton", tariff.FabricCottonRich},
		{"60% cotton 40% poly", tariff.FabricCottonRich},
		{"Cotton: 95%", tariff.FabricCottonRich},
		{"poly 65% cotton 35%", tariff.FabricPolyRich},
		{"polyester", tariff.FabricPolyRich},
		{"50% cotton 50% poly", tariff.FabricMixed}, // tie: both keywords present
		{"40% cotton 40% poly 20% spandex", tariff.FabricMixed},
		{"wool blend", tariff.FabricMixed},
		{"", tariff.FabricMixed},
	}
	for _, tc := range cases {
		if got := tariff.DetectFabricBucket(tc.material); got != tc.want {
			t.Errorf("DetectFabricBucket(%q) = %q, want %q", tc.material, got, tc.want)
		}
	}
}

func TestClassificationRuleOrder(t *testing.T) {
	// "junior girls" must classify junior, not kids: earlier rules win.
	if got := tariff.ClassifyLifecycleGroup("Junior Girls Tank", ""); got != tariff.GroupJunior {
		t.Errorf("lifecycle = %q, want %q", got, tariff.GroupJunior)
	}
	if got := tariff.ClassifyLifecycleGroup("Boys Graphic Tee", ""); got != tariff.GroupKids {
		t.Errorf("lifecycle = %q, want %q", got, tariff.GroupKids)
	}
	// "tee shirt" must classify tee, not top.
	if got := tariff.ClassifyProductType("crew neck tee shirt"); got != tariff.TypeTee {
		t.Errorf("productType = %q, want %q", got, tariff.TypeTee)
	}
	if got := tariff.ClassifyProductType("woven blouse"); got != tariff.TypeTop {
		t.Errorf("productType = %q, want %q", got, tariff.TypeTop)
	}
	if got := tariff.ClassifyProductType("something unrecognizable"); got != tariff.TypeApparel {
		t.Errorf("productType = %q, want %q", got, tariff.TypeApparel)
	}
}

func TestDeriveTariffKey(t *testing.T) {
	cases := []struct {
		item tariff.ItemAttributes
		want string
	}{
		{
			tariff.ItemAttributes{Description: "Women's Jersey Tee", Collection: "Summer", Material: "100% cotton"},
			"womens tee | cotton-rich",
		},
		{
			tariff.ItemAttributes{Description: "Graphic   Tee", Material: "POLYESTER"},
			"tee | poly-rich", // general group omits the prefix
		},
		{
			tariff.ItemAttributes{Description: "Kids Hoodie", Material: ""},
			"kids jacket | mixed",
		},
	}
	for _, tc := range cases {
		if got := tariff.DeriveTariffKey(tc.item); got != tc.want {
			t.Errorf("DeriveTariffKey(%+v) = %q, want %q", tc.item, got, tc.want)
		}
	}
}

func TestDeriveTariffKeyDeterministic(t *testing.T) {
	item := tariff.ItemAttributes{Description: "Mens Jogger Pants", Collection: "Core", Material: "70% poly 30% cotton"}
	first := tariff.DeriveTariffKey(item)
	for i := 0; i < 100; i++ {
		if got := tariff.DeriveTariffKey(item); got != first {
			t.Fatalf("run %d: key %q differs from %q", i, got, first)
		}
	}
}

func TestResolveTariffRateTiers(t *testing.T) {
	table := tariff.StaticRateTable{
		"cn | tee | cotton-rich": d("0.30"),
		"tee | cotton-rich":      d("0.20"),
	}

	// Tier 1: country-specific row wins and is used verbatim (no extra surcharge).
	rate, matched := tariff.ResolveTariffRate("Tee | cotton-rich", "CN", table)
	if !rate.Equal(d("0.30")) || matched != "cn | tee | cotton-rich" {
		t.Errorf("tier 1: got (%s, %q)", rate, matched)
	}

	// Tier 2: bare key plus surcharge for CN, no surcharge for VN.
	rate, matched = tariff.ResolveTariffRate("tee | cotton-rich", "VN", tariff.StaticRateTable{
		"tee | cotton-rich": d("0.20"),
	})
	if !rate.Equal(d("0.20")) || matched != "tee | cotton-rich" {
		t.Errorf("tier 2 VN: got (%s, %q)", rate, matched)
	}
	rate, _ = tariff.ResolveTariffRate("tee | cotton-rich", "cn", tariff.StaticRateTable{
		"tee | cotton-rich": d("0.20"),
	})
	if !rate.Equal(d("0.275")) {
		t.Errorf("tier 2 CN: got %s, want 0.275", rate)
	}

	// Tier 3: computed default, matchedKey empty.
	rate, matched = tariff.ResolveTariffRate("tee | cotton-rich", "VN", tariff.StaticRateTable{})
	if !rate.Equal(d("0.22")) || matched != "" {
		t.Errorf("tier 3 VN: got (%s, %q)", rate, matched)
	}
	rate, _ = tariff.ResolveTariffRate("tee | cotton-rich", "CN", tariff.StaticRateTable{})
	if !rate.Equal(d("0.295")) {
		t.Errorf("tier 3 CN: got %s, want 0.295", rate)
	}
}

func TestApplyOriginSurchargeClampAndScale(t *testing.T) {
	if got := tariff.ApplyOriginSurcharge(d("0.98"), "CN"); !got.Equal(d("1")) {
		t.Errorf("clamp: got %s, want 1", got)
	}
	if got := tariff.ApplyOriginSurcharge(d("0.12345"), "VN"); !got.Equal(d("0.1235")) {
		t.Errorf("scale: got %s, want 0.1235", got)
	}
	if got := tariff.ApplyOriginSurcharge(d("-0.5"), "VN"); !got.Equal(decimal.Zero) {
		t.Errorf("negative clamp: got %s, want 0", got)
	}
}

func TestDefaultRateForStoredKey(t *testing.T) {
	if got := tariff.DefaultRateForStoredKey("tee | cotton-rich"); !got.Equal(d("0.22")) {
		t.Errorf("bare key: got %s, want 0.22", got)
	}
	if got := tariff.DefaultRateForStoredKey("cn | tee | cotton-rich"); !got.Equal(d("0.295")) {
		t.Errorf("cn-prefixed key: got %s, want 0.295", got)
	}
	if got := tariff.DefaultRateForStoredKey("vn | dress | poly-rich"); !got.Equal(d("0.26")) {
		t.Errorf("vn-prefixed key: got %s, want 0.26", got)
	}
	// Unknown category falls back to the generic bucket rates.
	if got := tariff.DefaultRateForStoredKey("widget | mixed"); !got.Equal(d("0.215")) {
		t.Errorf("generic fallback: got %s, want 0.215", got)
	}
}

func TestIsRateStale(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if tariff.IsRateStale(now.Add(-29*24*time.Hour), now) {
		t.Error("29 days old reported stale")
	}
	if !tariff.IsRateStale(now.Add(-31*24*time.Hour), now) {
		t.Error("31 days old reported fresh")
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := tariff.NormalizeKey("  Womens   TEE |  Cotton-Rich "); got != "womens tee | cotton-rich" {
		t.Errorf("NormalizeKey = %q", got)
	}
}
