package extension

import (
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"paymentScope/internal/model"
)

func TestCreationGeneratesSalt(t *testing.T) {
	builder := NewBuilder(model.NetworkERC20FeeProxyContract, "0.2.0")
	action, err := builder.Creation(CreationParameters{
		PaymentAddress: "0x627306090abaB3A6e1400e9345bC60c78a8BEf57",
		FeeAddress:     "0x0d1d4e623D10F9FBA5Db95830F7d3839406C6AF2",
		FeeAmount:      "100",
	})
	if err != nil {
		t.Fatalf("creation: %v", err)
	}
	if action.Action != ActionCreate || action.ID != model.NetworkERC20FeeProxyContract || action.Version != "0.2.0" {
		t.Fatalf("unexpected action: %+v", action)
	}
	salt, ok := action.Parameters["salt"].(string)
	if !ok {
		t.Fatalf("missing salt: %+v", action.Parameters)
	}
	raw, err := hex.DecodeString(salt)
	if err != nil || len(raw) != SaltBytes {
		t.Fatalf("salt must be %d hex bytes, got %q", SaltBytes, salt)
	}
	if _, ok := action.Parameters["refundAddress"]; ok {
		t.Fatalf("unset fields must be omitted: %+v", action.Parameters)
	}
}

func TestCreationKeepsGivenSalt(t *testing.T) {
	action, err := NewBuilder(model.NetworkERC20ProxyContract, "0.1.0").Creation(CreationParameters{
		PaymentAddress: "0x627306090abaB3A6e1400e9345bC60c78a8BEf57",
		Salt:           "ea3bc7caf64110ca",
	})
	if err != nil {
		t.Fatalf("creation: %v", err)
	}
	if action.Parameters["salt"] != "ea3bc7caf64110ca" {
		t.Fatalf("unexpected salt: %v", action.Parameters["salt"])
	}
}

func TestDeclarativeCreationHasNoSalt(t *testing.T) {
	action, err := NewBuilder(model.NetworkAnyDeclarative, "0.1.0").Creation(CreationParameters{
		PaymentInfo: map[string]any{"IBAN": "FR123"},
	})
	if err != nil {
		t.Fatalf("creation: %v", err)
	}
	want := map[string]any{"paymentInfo": map[string]any{"IBAN": "FR123"}}
	if !reflect.DeepEqual(action.Parameters, want) {
		t.Fatalf("unexpected parameters: %+v", action.Parameters)
	}
}

func TestStreamSubrequestCreation(t *testing.T) {
	action, err := NewBuilder(model.NetworkERC777Stream, "0.1.0").Creation(CreationParameters{
		PaymentAddress:    "0xf17f52151EbEF6C7334FAD080c5704D77216b732",
		MasterRequestID:   "0xmaster",
		PreviousRequestID: "0xmaster",
		RecurrenceNumber:  1,
	})
	if err != nil {
		t.Fatalf("creation: %v", err)
	}
	if action.Parameters["salt"] == nil {
		t.Fatalf("stream requests need a salt: %+v", action.Parameters)
	}
	if action.Parameters["masterRequestId"] != "0xmaster" || action.Parameters["previousRequestId"] != "0xmaster" || action.Parameters["recurrenceNumber"] != uint64(1) {
		t.Fatalf("unexpected series parameters: %+v", action.Parameters)
	}

	if _, err := NewBuilder(model.NetworkERC777Stream, "0.1.0").Creation(CreationParameters{RecurrenceNumber: 2}); err == nil {
		t.Fatalf("a recurring request without its master must be rejected")
	}
}

func TestCreationValidation(t *testing.T) {
	builder := NewBuilder(model.NetworkERC20FeeProxyContract, "0.2.0")
	cases := []CreationParameters{
		{Salt: "not-hex"},
		{FeeAmount: "10"},
		{FeeAddress: "0xfee", FeeAmount: "ten"},
		{AcceptedTokens: []string{""}},
	}
	for _, params := range cases {
		if _, err := builder.Creation(params); err == nil {
			t.Fatalf("expected validation error for %+v", params)
		}
	}
}

func TestMetaCreation(t *testing.T) {
	action, err := NewBuilder(model.NetworkMeta, "0.1.0").Creation(CreationParameters{
		SubNetworks: map[model.PaymentNetworkID][]CreationParameters{
			model.NetworkAnyToERC20Proxy: {{
				PaymentAddress: "0x627306090abaB3A6e1400e9345bC60c78a8BEf57",
				Network:        "mainnet",
				AcceptedTokens: []string{"0x6B175474E89094C44Da98b954EedeAC495271d0F"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("creation: %v", err)
	}
	subs, ok := action.Parameters[string(model.NetworkAnyToERC20Proxy)].([]map[string]any)
	if !ok || len(subs) != 1 {
		t.Fatalf("unexpected sub networks: %+v", action.Parameters)
	}
	if subs[0]["network"] != "mainnet" || subs[0]["salt"] == nil {
		t.Fatalf("sub network must be created with a salt: %+v", subs[0])
	}

	_, err = NewBuilder(model.NetworkMeta, "0.1.0").Creation(CreationParameters{
		SubNetworks: map[model.PaymentNetworkID][]CreationParameters{model.NetworkMeta: {{}}},
	})
	if err == nil {
		t.Fatalf("expected nested meta to be rejected")
	}

	_, err = NewBuilder(model.NetworkMeta, "0.1.0").Creation(CreationParameters{
		SubNetworks: map[model.PaymentNetworkID][]CreationParameters{
			model.NetworkERC20FeeProxyContract: {{PaymentAddress: "0x627306090abaB3A6e1400e9345bC60c78a8BEf57"}},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "not supported for meta-pn detection") {
		t.Fatalf("expected fee proxy sub network to be rejected, got %v", err)
	}
}

func TestAddActions(t *testing.T) {
	builder := NewBuilder(model.NetworkERC20FeeProxyContract, "0.2.0")

	action, err := builder.AddPaymentAddress("0xpayee")
	if err != nil || action.Action != ActionAddPaymentAddress || action.Parameters["paymentAddress"] != "0xpayee" {
		t.Fatalf("unexpected addPaymentAddress: %+v, %v", action, err)
	}
	action, err = builder.AddRefundAddress("0xpayer")
	if err != nil || action.Action != ActionAddRefundAddress || action.Parameters["refundAddress"] != "0xpayer" {
		t.Fatalf("unexpected addRefundAddress: %+v, %v", action, err)
	}
	if _, err := builder.AddPaymentAddress(""); err == nil {
		t.Fatalf("expected empty address to be rejected")
	}
	action, err = builder.AddFee(FeeParameters{FeeAddress: "0xfee", FeeAmount: "20"})
	if err != nil || !reflect.DeepEqual(action.Parameters, map[string]any{"feeAddress": "0xfee", "feeAmount": "20"}) {
		t.Fatalf("unexpected addFee: %+v, %v", action, err)
	}
	if _, err := builder.AddFee(FeeParameters{FeeAddress: "0xfee"}); err == nil {
		t.Fatalf("expected missing fee amount to be rejected")
	}
}

func TestDeclarativeActions(t *testing.T) {
	builder := NewBuilder(model.NetworkAnyDeclarative, "0.1.0")
	actions := []struct {
		build func(DeclarationParameters) (model.Action, error)
		name  string
	}{
		{builder.DeclareSentPayment, ActionDeclareSentPayment},
		{builder.DeclareSentRefund, ActionDeclareSentRefund},
		{builder.DeclareReceivedPayment, ActionDeclareReceivedPayment},
		{builder.DeclareReceivedRefund, ActionDeclareReceivedRefund},
	}
	for _, tc := range actions {
		action, err := tc.build(DeclarationParameters{Amount: "1000", Note: "first"})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		want := map[string]any{"amount": "1000", "note": "first"}
		if action.Action != tc.name || !reflect.DeepEqual(action.Parameters, want) {
			t.Fatalf("%s: unexpected action %+v", tc.name, action)
		}
		if _, err := tc.build(DeclarationParameters{Amount: "-"}); err == nil {
			t.Fatalf("%s: expected invalid amount to be rejected", tc.name)
		}
	}

	info, err := builder.AddPaymentInfo(map[string]any{"IBAN": "FR123"})
	if err != nil || info.Action != ActionAddPaymentInstruction {
		t.Fatalf("unexpected addPaymentInstruction: %+v, %v", info, err)
	}
	if _, err := builder.AddRefundInfo(nil); err == nil {
		t.Fatalf("expected missing refund info to be rejected")
	}
}

func TestApplyActionToPn(t *testing.T) {
	sub, err := NewBuilder(model.NetworkAnyToERC20Proxy, "0.1.0").AddPaymentAddress("0xpayee")
	if err != nil {
		t.Fatalf("sub action: %v", err)
	}
	action, err := NewBuilder(model.NetworkMeta, "0.1.0").ApplyActionToPn("pn-1", sub)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if action.Action != ActionApplyActionToPn || action.Parameters["pnIdentifier"] != "pn-1" || action.Parameters["action"] != ActionAddPaymentAddress {
		t.Fatalf("unexpected action: %+v", action)
	}
	if _, err := NewBuilder(model.NetworkAnyDeclarative, "0.1.0").ApplyActionToPn("pn-1", sub); err == nil {
		t.Fatalf("expected non meta builder to reject applyActionToPn")
	}
}
