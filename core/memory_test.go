package core

import "testing"

func TestMakeCodeReadOnlyStripsWriteFromExecutableSegments(t *testing.T) {
	m := &Memory{}
	m.AddSegment("load0", 0x1000, 0x100, PermRead|PermWrite|PermExecute)
	m.AddSegment("data", 0x2000, 0x100, PermRead|PermWrite)

	m.MakeCodeReadOnly()

	code, _, err := m.findSegment(0x1000)
	if err != nil {
		t.Fatalf("findSegment(code): %v", err)
	}
	if code.Permissions&PermWrite != 0 {
		t.Errorf("code segment permissions = %v, want write bit cleared", code.Permissions)
	}
	if code.Permissions&PermRead == 0 || code.Permissions&PermExecute == 0 {
		t.Errorf("code segment permissions = %v, want read and execute preserved", code.Permissions)
	}

	if err := m.WriteByte(0x1000, 0xff); err == nil {
		t.Errorf("WriteByte into read-only code segment succeeded, want permission error")
	}

	data, _, err := m.findSegment(0x2000)
	if err != nil {
		t.Fatalf("findSegment(data): %v", err)
	}
	if data.Permissions&PermWrite == 0 {
		t.Errorf("non-executable segment permissions = %v, want write bit untouched", data.Permissions)
	}
}
