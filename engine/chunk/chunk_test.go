package chunk

import (
	"reflect"
	"testing"

	"github.com/vrtlab/revmine/engine/domain"
)

func TestSplitSections(t *testing.T) {
	text := "整体感觉不错【外观】线条很流畅，大灯有神【内饰】用料一般般"
	got := Split(text)
	want := []domain.Chunk{
		{Section: "opening", Text: "整体感觉不错"},
		{Section: "【外观】", Text: "线条很流畅，大灯有神"},
		{Section: "【内饰】", Text: "用料一般般"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split() = %#v, want %#v", got, want)
	}
}

func TestSplitASCIIBrackets(t *testing.T) {
	got := Split("[space] plenty of room in the back seats")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Section != "[space]" {
		t.Errorf("section = %q, want %q", got[0].Section, "[space]")
	}
}

func TestSplitMinLength(t *testing.T) {
	// Four runes is below the cutoff, five is kept.
	if got := Split("【动力】很不错"); len(got) != 0 {
		t.Errorf("4-rune chunk should be dropped, got %#v", got)
	}
	got := Split("【动力】相当不错的")
	if len(got) != 1 || got[0].Text != "相当不错的" {
		t.Errorf("5-rune chunk should be kept, got %#v", got)
	}
}

func TestSplitNoHeaders(t *testing.T) {
	got := Split("这台车开起来很顺手")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Section != DefaultSection {
		t.Errorf("section = %q, want %q", got[0].Section, DefaultSection)
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split(""); got != nil {
		t.Errorf("Split(\"\") = %#v, want nil", got)
	}
	if got := Split("   \n\t  "); got != nil {
		t.Errorf("Split(whitespace) = %#v, want nil", got)
	}
}

func TestSplitPure(t *testing.T) {
	text := "开头一段话【油耗】市区油耗偏高一些【油耗】高速还可以接受"
	a := Split(text)
	b := Split(text)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Split is not deterministic")
	}
}
