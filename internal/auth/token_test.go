package auth

import "testing"

func TestGenerateOpaqueToken(t *testing.T) {
	raw, hashed, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	if raw == "" || hashed == "" {
		t.Fatal("token e hash não podem ser vazios")
	}
	if raw == hashed {
		t.Fatal("hash não pode ser igual ao valor bruto")
	}
	if HashOpaqueToken(raw) != hashed {
		t.Fatal("hash devolvido deve corresponder ao recomputado")
	}

	raw2, _, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	if raw == raw2 {
		t.Fatal("tokens consecutivos não podem colidir")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("senha-muito-secreta")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword("senha-muito-secreta", hash)
	if err != nil || !ok {
		t.Fatalf("senha correta deveria validar: ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword("senha-errada", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("senha incorreta não pode validar")
	}
}
