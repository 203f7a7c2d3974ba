/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		raw  string
		want Frame
		err  bool
	}{
		{raw: "ping", want: Frame{Verb: "ping"}},
		{raw: "create Alpha Team", want: Frame{Verb: "create", Arg: "Alpha Team"}},
		{raw: "answer 0 Room 2444", want: Frame{Verb: "answer", Arg: "0 Room 2444"}},
		{raw: "create ", want: Frame{Verb: "create"}},
		{raw: "", err: true},
		{raw: " create", err: true},
		{raw: "create a\nb", err: true},
	}

	for _, tc := range tests {
		got, err := ParseFrame(tc.raw)
		if tc.err {
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("ParseFrame(%q) error = %v, want ErrProtocol", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFrame(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFrame(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestParseRejoin(t *testing.T) {
	team, tok, err := parseRejoin("Alpha Team eyJ.abc.def")
	if err != nil || team != "Alpha Team" || tok != "eyJ.abc.def" {
		t.Errorf("parseRejoin = %q, %q, %v", team, tok, err)
	}

	for _, arg := range []string{"", "Alpha", " token", "Alpha "} {
		if _, _, err := parseRejoin(arg); !errors.Is(err, ErrProtocol) {
			t.Errorf("parseRejoin(%q) error = %v, want ErrProtocol", arg, err)
		}
	}
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		arg  string
		want answer
		err  bool
	}{
		{arg: "0 B", want: answer{index: 0, response: "B"}},
		{arg: "3 room 2444", want: answer{index: 3, response: "room 2444"}},
		{arg: "230", want: answer{score: 230, legacy: true}},
		{arg: "", err: true},
		{arg: "B", err: true},
		{arg: "first B", err: true},
	}

	for _, tc := range tests {
		got, err := parseAnswer(tc.arg)
		if tc.err {
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("parseAnswer(%q) error = %v, want ErrProtocol", tc.arg, err)
			}
			continue
		}
		if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(answer{})); diff != "" || err != nil {
			t.Errorf("parseAnswer(%q) err=%v mismatch (-want +got):\n%s", tc.arg, err, diff)
		}
	}
}

func TestParseOp(t *testing.T) {
	for _, word := range []string{"start", "end", "next", "finish"} {
		if _, ok := ParseOp(word); !ok {
			t.Errorf("ParseOp(%q) not recognised", word)
		}
	}
	if _, ok := ParseOp("restart"); ok {
		t.Errorf("ParseOp accepted an unknown word")
	}
}
