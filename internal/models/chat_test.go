package models

import "testing"

func TestFallbackBody(t *testing.T) {
	if got := FallbackBody(1); got != "Shared 1 screenshot" {
		t.Fatalf("got %q", got)
	}
	if got := FallbackBody(3); got != "Shared 3 screenshots" {
		t.Fatalf("got %q", got)
	}
}

func TestAttachmentPlaceholder(t *testing.T) {
	want := "\U0001F4F8 Screenshot attached: shot-1.png"
	if got := AttachmentPlaceholder("shot-1.png"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInitials(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Grace Hopper", "GH"},
		{"ada", "A"},
		{"Jean Luc Picard", "JL"},
		{"", ""},
		{"  spaced  out  ", "SO"},
	}
	for _, c := range cases {
		if got := Initials(c.name); got != c.want {
			t.Errorf("Initials(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestCredentialsComplete(t *testing.T) {
	full := Credentials{APIKey: "k", SessionID: "s", Token: "t"}
	if !full.Complete() {
		t.Fatal("all three fields set should be complete")
	}
	for _, c := range []Credentials{
		{SessionID: "s", Token: "t"},
		{APIKey: "k", Token: "t"},
		{APIKey: "k", SessionID: "s"},
	} {
		if c.Complete() {
			t.Fatalf("%+v should be incomplete", c)
		}
	}
}

func TestDeviceSet(t *testing.T) {
	empty := DeviceSet{}
	if !empty.Empty() || empty.HasCamera() || empty.HasMicrophone() {
		t.Fatal("zero value should report no devices")
	}
	micOnly := DeviceSet{Microphones: []Device{{ID: "mic-1", Kind: DeviceMicrophone}}}
	if micOnly.Empty() || micOnly.HasCamera() || !micOnly.HasMicrophone() {
		t.Fatal("mic-only set misreported")
	}
}
