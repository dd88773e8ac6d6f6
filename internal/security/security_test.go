package security

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestPasswordRoundTrip(t *testing.T) {
	hashed, errHash := HashPassword("hunter2")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hashed == "hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword(hashed, "hunter2") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hashed, "hunter3") {
		t.Fatal("wrong password accepted")
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	token, errMint := MintAdminToken("secret", 7, "root", time.Hour)
	if errMint != nil {
		t.Fatalf("mint: %v", errMint)
	}

	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, errWrong := ParseAdminToken("other", token); errWrong == nil {
		t.Fatal("token verified with the wrong secret")
	}
	if _, errGarbage := ParseAdminToken("secret", "not-a-token"); errGarbage == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestAdminTokenExpiry(t *testing.T) {
	token, errMint := MintAdminToken("secret", 7, "root", -time.Minute)
	if errMint != nil {
		t.Fatalf("mint: %v", errMint)
	}
	if _, errParse := ParseAdminToken("secret", token); errParse == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateTOTP(t *testing.T) {
	secret, url, errGenerate := GenerateTOTPSecret("creteebot", "root")
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if secret == "" || url == "" {
		t.Fatal("expected secret and provisioning url")
	}

	code, errCode := totp.GenerateCode(secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	if !ValidateTOTP(secret, code) {
		t.Fatal("current code rejected")
	}
	if ValidateTOTP(secret, "000000") && code != "000000" {
		t.Fatal("bogus code accepted")
	}
	if ValidateTOTP("", code) {
		t.Fatal("empty secret accepted")
	}
}
