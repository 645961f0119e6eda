package validator

import "testing"

type idQuery struct {
	IDs  string `validate:"id_list"`
	City string `validate:"numeric_or_empty"`
}

func TestIDList(t *testing.T) {
	val := New()
	cases := map[string]bool{
		"1":      true,
		"1,2,3":  true,
		"1,,2":   true,
		" 4 , 9": true,
		"1,":     true,
		"":       false,
		",,":     false,
		"1,x":    false,
		"0":      false,
		"-3":     false,
	}
	for in, want := range cases {
		err := val.Struct(idQuery{IDs: in})
		if got := err == nil; got != want {
			t.Fatalf("id_list %q: valid=%v, want %v (%v)", in, got, want, err)
		}
	}
}

func TestNumericOrEmptyAndFieldErrors(t *testing.T) {
	val := New()
	if err := val.Struct(idQuery{IDs: "1", City: ""}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := val.Struct(idQuery{IDs: "1", City: "moscow"})
	fields := FieldErrors(err)
	if fields["City"] != "numeric_or_empty" || len(fields) != 1 {
		t.Fatalf("unexpected field errors %v", fields)
	}
}
