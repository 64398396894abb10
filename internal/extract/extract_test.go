package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/tour-assistant/internal/model"
)

func TestSelectionsBold(t *testing.T) {
	got := Selections("**Đà Lạt Tour** 4,500,000 VNĐ")
	assert.Equal(t, []model.TourSelection{{Name: "Đà Lạt Tour", Price: 4500000, Index: 0}}, got)
}

func TestSelectionsFamilies(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		family string
		want   []model.TourSelection
	}{
		{
			name: "bold with label and dotted separators",
			text: "Gợi ý cho bạn:\n**Phú Quốc 3N2Đ** - Giá: 6.990.000 VNĐ/người\n**Sapa Trekking** giá chỉ 2,150,000đ.",
			want: []model.TourSelection{
				{Name: "Phú Quốc 3N2Đ", Price: 6990000, Index: 0},
				{Name: "Sapa Trekking", Price: 2150000, Index: 1},
			},
			family: "bold",
		},
		{
			name: "bold skips duration before price",
			text: "**Hạ Long Bay** 2 ngày 1 đêm, 3 500 000 đồng",
			want: []model.TourSelection{
				{Name: "Hạ Long Bay", Price: 3500000, Index: 0},
			},
			family: "bold",
		},
		{
			name: "numbered list",
			text: "1. Đà Nẵng - Hội An - 5,200,000 VNĐ\n2) Nha Trang: Giá 3,200,000₫\n3. Huế (city tour)",
			want: []model.TourSelection{
				{Name: "Đà Nẵng", Price: 5200000, Index: 0},
				{Name: "Nha Trang", Price: 3200000, Index: 1},
			},
			family: "numbered",
		},
		{
			name: "html tags",
			text: "<p><strong>Mekong Delta</strong> chỉ 1,800,000 VND</p><p><b>Côn Đảo</b>: 7,000,000 VNĐ</p>",
			want: []model.TourSelection{
				{Name: "Mekong Delta", Price: 1800000, Index: 0},
				{Name: "Côn Đảo", Price: 7000000, Index: 1},
			},
			family: "html",
		},
		{
			name: "escaped html",
			text: "&lt;b&gt;Mũi Né &amp; Phan Thiết&lt;/b&gt; 2,400,000 VNĐ",
			want: []model.TourSelection{
				{Name: "Mũi Né & Phan Thiết", Price: 2400000, Index: 0},
			},
			family: "html",
		},
		{
			name: "duration shorthand before price",
			text: "**Tour Hạ Long** 2N1Đ - 2.500.000 VNĐ\n**Tour Sapa** 3N2Đ giá 3,200,000đ",
			want: []model.TourSelection{
				{Name: "Tour Hạ Long", Price: 2500000, Index: 0},
				{Name: "Tour Sapa", Price: 3200000, Index: 1},
			},
			family: "bold",
		},
		{
			name: "price followed directly by next item",
			text: "**Huế** 1.000.000đ**Đà Nẵng** 2.000.000đ",
			want: []model.TourSelection{
				{Name: "Huế", Price: 1000000, Index: 0},
				{Name: "Đà Nẵng", Price: 2000000, Index: 1},
			},
			family: "bold",
		},
		{
			name:   "decimal amount is not a price",
			text:   "**Tour Đà Lạt** 4,500,000.50 VNĐ",
			family: "",
		},
		{
			name:   "no prices",
			text:   "**Đà Lạt** là thành phố ngàn hoa.",
			family: "",
		},
		{
			name:   "empty",
			text:   "",
			family: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Selections(tt.text))
			assert.Equal(t, tt.family, Family(tt.text))
		})
	}
}

func TestSelectionsFirstFamilyWins(t *testing.T) {
	text := "**Đà Lạt Tour** 4,500,000 VNĐ\n" +
		"1. Nha Trang - 3,200,000 VNĐ\n" +
		"2. Phú Quốc - 6,100,000 VNĐ"

	got := Selections(text)
	assert.Equal(t, []model.TourSelection{{Name: "Đà Lạt Tour", Price: 4500000, Index: 0}}, got)
}

func TestSelectionsIdempotent(t *testing.T) {
	text := "1. Đà Nẵng - 5,200,000 VNĐ\n2. Huế - 2,000,000 VNĐ"
	first := Selections(text)
	assert.Equal(t, first, Selections(text))
	assert.Len(t, first, 2)
}

func TestSelectionsPartialText(t *testing.T) {
	// Mid-stream text where the second price has not arrived yet.
	text := "**Đà Lạt Tour** 4,500,000 VNĐ\n**Sapa** 2,1"
	assert.Len(t, Selections(text), 1)
}

func TestSelectionsSkipsOverflowingPrice(t *testing.T) {
	text := "**Huge** 99999999999999999999999 VNĐ\n**Fine** 1,000,000 VNĐ"
	assert.Equal(t, []model.TourSelection{{Name: "Fine", Price: 1000000, Index: 0}}, Selections(text))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"4,500,000", 4500000, true},
		{"4.500.000", 4500000, true},
		{"4 500 000", 4500000, true},
		{"750000", 750000, true},
		{"", 0, false},
		{"1,2a", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
