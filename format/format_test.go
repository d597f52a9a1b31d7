package format

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		bytes    uint32
		expected string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{1000, "1000 B"},
		{1499, "1499 B"},
		{1500, "1.46 KiB"},
		{2048, "2.00 KiB"},
		{5120, "5.00 KiB"},
		{10240, "10.0 KiB"},
		{51200, "50.0 KiB"},
		{102400, "100 KiB"},
		{512000, "500 KiB"},
		{1048575, "1024 KiB"},
		{1536000, "1.46 MiB"},
		{2097152, "2.00 MiB"},
		{5242880, "5.00 MiB"},
		{10485760, "10.0 MiB"},
		{52428800, "50.0 MiB"},
		{104857600, "100 MiB"},
		{1073741824, "1024 MiB"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, FormatBytes(testCase.bytes))
	}
}

func TestFormatCount(t *testing.T) {
	testCases := []struct {
		count    uint32
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{1000, "1000"},
		{1499, "1499"},
		{1500, "1.5K"},
		{2000, "2.0K"},
		{5000, "5.0K"},
		{10000, "10K"},
		{50000, "50K"},
		{100000, "100K"},
		{500000, "500K"},
		{999999, "1000K"},
		{1500000, "1.5M"},
		{2000000, "2.0M"},
		{10000000, "10M"},
		{100000000, "100M"},
		{1000000000, "1000M"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, FormatCount(testCase.count))
	}
}

func TestMarshalJSON(t *testing.T) {
	type report struct {
		Size      ByteSize      `json:"size"`
		Downloads Count         `json:"downloads"`
		Versions  OptionalCount `json:"versions"`
	}

	data, err := json.Marshal(report{Size: 2048, Downloads: 1500})
	assert.Nil(t, err)
	assert.Equal(t, `{"size":"2.00 KiB","downloads":"1.5K","versions":null}`, string(data))

	data, err = json.Marshal(report{Size: 10, Downloads: 7, Versions: NewOptionalCount(2000000)})
	assert.Nil(t, err)
	assert.Equal(t, `{"size":"10 B","downloads":"7","versions":"2.0M"}`, string(data))
}
