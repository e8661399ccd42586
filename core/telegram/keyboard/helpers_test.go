package keyboard

import "testing"

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Yes", Unique: "qz_opt", Data: "q1|0"}, {Text: "No", Unique: "qz_opt", Data: "q1|1"}},
		nil,
		[]InlineBtn{{Text: "Shop", URL: "https://shop.example"}},
		[]InlineBtn{{Text: "Open app", WebApp: "https://app.example"}},
	)
	if len(m.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want 3", len(m.InlineKeyboard))
	}
	first := m.InlineKeyboard[0]
	if len(first) != 2 || first[0].Unique != "qz_opt" || first[1].Data != "q1|1" {
		t.Fatalf("first row = %+v", first)
	}
	if m.InlineKeyboard[1][0].URL != "https://shop.example" {
		t.Fatalf("url button = %+v", m.InlineKeyboard[1][0])
	}
	if wa := m.InlineKeyboard[2][0].WebApp; wa == nil || wa.URL != "https://app.example" {
		t.Fatalf("webapp button = %+v", m.InlineKeyboard[2][0])
	}
}

func TestChunk(t *testing.T) {
	rows := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(rows) != 3 || len(rows[2]) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	if got := Chunk([]int{1, 2}, 0); len(got) != 2 {
		t.Fatalf("n<=1 rows = %v", got)
	}
}
