package correlate

import (
	"errors"
	"math/big"
	"testing"

	"paymentScope/internal/contracts"
)

const (
	usdHash = "0x775eb53d00dd0acd3ec1696472105d579b9b386b"
	payee   = "0x627306090abaB3A6e1400e9345bC60c78a8BEf57"
	dai     = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

func conversion(tx string, rate int64) contracts.Conversion {
	return contracts.Conversion{
		Amount:          big.NewInt(100000000),
		Currency:        usdHash,
		FeeAmount:       big.NewInt(0),
		MaxRateTimespan: big.NewInt(rate),
		TxHash:          tx,
		Block:           10,
	}
}

func transfer(tx, token, to string) contracts.Transfer {
	return contracts.Transfer{
		TokenAddress: token,
		To:           to,
		Amount:       big.NewInt(1000),
		FeeAmount:    big.NewInt(1),
		TxHash:       tx,
		Block:        10,
	}
}

func predicates() Predicates {
	return Predicates{
		AcceptedTokens:  []string{"0x6b175474e89094c44da98b954eedeac495271d0f"},
		MaxRateTimespan: 1000,
		CurrencyHash:    usdHash,
		To:              "0x627306090abab3a6e1400e9345bc60c78a8bef57",
	}
}

func TestCorrelateOrphanConversionFails(t *testing.T) {
	_, err := Correlate(
		[]contracts.Conversion{conversion("0xaa", 0), conversion("0xbb", 0)},
		[]contracts.Transfer{transfer("0xaa", dai, payee)},
		predicates(),
	)
	if !errors.Is(err, ErrProxyLogNotFound) {
		t.Fatalf("expected proxy log not found, got %v", err)
	}
}

func TestCorrelateJoinsByTransaction(t *testing.T) {
	pairs, err := Correlate(
		[]contracts.Conversion{conversion("0xAA", 0)},
		[]contracts.Transfer{transfer("0xbb", dai, payee), transfer("0xaa", dai, payee)},
		predicates(),
	)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Transfer.TxHash != "0xaa" {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestCorrelateRateStaleness(t *testing.T) {
	p := predicates()
	pairs, err := Correlate(
		[]contracts.Conversion{conversion("0x01", 999), conversion("0x02", 1000), conversion("0x03", 1001)},
		[]contracts.Transfer{transfer("0x01", dai, payee), transfer("0x02", dai, payee), transfer("0x03", dai, payee)},
		p,
	)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 fresh pairs, got %d", len(pairs))
	}
	for _, pair := range pairs {
		if pair.TxHash == "0x03" {
			t.Fatalf("stale conversion was included")
		}
	}
}

func TestCorrelateTokenAllowList(t *testing.T) {
	other := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	pairs, err := Correlate(
		[]contracts.Conversion{conversion("0x01", 0), conversion("0x02", 0)},
		[]contracts.Transfer{transfer("0x01", other, payee), transfer("0x02", dai, payee)},
		predicates(),
	)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if len(pairs) != 1 || pairs[0].TxHash != "0x02" {
		t.Fatalf("token outside allow-list was included: %+v", pairs)
	}

	open := predicates()
	open.AcceptedTokens = nil
	pairs, err = Correlate(
		[]contracts.Conversion{conversion("0x01", 0)},
		[]contracts.Transfer{transfer("0x01", other, payee)},
		open,
	)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("nil allow-list should accept every token")
	}
}

func TestCorrelateCurrencyAndDestination(t *testing.T) {
	eur := conversion("0x01", 0)
	eur.Currency = "0x17b4158805772ced11225e77339f90beb5aae968"
	pairs, err := Correlate(
		[]contracts.Conversion{eur, conversion("0x02", 0)},
		[]contracts.Transfer{transfer("0x01", dai, payee), transfer("0x02", dai, "0x0000000000000000000000000000000000000001")},
		predicates(),
	)
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("expected currency and destination mismatches to be excluded: %+v", pairs)
	}
}

func TestAcceptNativeTransfer(t *testing.T) {
	p := predicates()
	if !p.Accept("", big.NewInt(0), usdHash, payee) {
		t.Fatalf("native transfer should pass the token predicate")
	}
}
