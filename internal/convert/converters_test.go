package convert

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestInteger(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int64
	}{
		{"plain number", "12345", int64Ptr(12345)},
		{"empty", "", nil},
		{"not reported", "NR", nil},
		{"not specified", "NS", nil},
		{"surrounding whitespace", " 42 ", int64Ptr(42)},
		{"garbage", "abc", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Integer(tt.text))
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64
	}{
		{"plain float", "1.35", floatPtr(1.35)},
		{"integer text", "2", floatPtr(2)},
		{"empty", "", nil},
		{"not reported", "NR", nil},
		{"leading decimal with junk suffix", "0.08 (per allele)", floatPtr(0.08)},
		{"bare decimal fraction", ".25-unit", floatPtr(0.25)},
		{"no number at all", "per allele", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Float(tt.text))
		})
	}
}

func TestString(t *testing.T) {
	assert.Nil(t, String(""))
	assert.Nil(t, String("NR"))
	assert.Nil(t, String("NS"))
	assert.Equal(t, "Asthma", *String("Asthma"))
}

func TestStringWithoutSlash(t *testing.T) {
	got := StringWithoutSlash("Crohn's disease/ulcerative colitis", testLogger())
	require.NotNil(t, got)
	assert.Equal(t, "Crohn's disease or ulcerative colitis", *got)

	plain := StringWithoutSlash("Type 2 diabetes", testLogger())
	require.NotNil(t, plain)
	assert.Equal(t, "Type 2 diabetes", *plain)

	assert.Nil(t, StringWithoutSlash("NR", testLogger()))
}

func TestDate(t *testing.T) {
	got, err := Date("12/30/2012")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2012, 12, 30, 0, 0, 0, 0, time.UTC), *got)

	got, err = Date("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Date("2012-12-30")
	assert.Error(t, err)

	_, err = Date("13/45/2012")
	assert.Error(t, err)
}

func TestRsID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int64
	}{
		{"canonical", "rs671", int64Ptr(671)},
		{"bare number", "671", int64Ptr(671)},
		{"multi snp", "rs671,rs672", nil},
		{"haplotype text", "rs2075650 x rs157580", nil},
		{"empty", "", nil},
		{"not reported", "NR", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RsID(tt.text, testLogger()))
		})
	}
}

func TestFieldManifestOrder(t *testing.T) {
	require.NotEmpty(t, FieldManifest)
	assert.Equal(t, "added", FieldManifest[0].Key)
	assert.Equal(t, "or", FieldManifest[len(FieldManifest)-1].Key)

	seen := map[string]bool{}
	for _, f := range FieldManifest {
		assert.False(t, seen[f.Key], "duplicate field key %s", f.Key)
		seen[f.Key] = true
	}
}

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
