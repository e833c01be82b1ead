// Package extension builds the extension data actions of payment networks.
package extension

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"paymentScope/internal/model"
)

// Action names understood by payment network extensions.
const (
	ActionCreate                 = "create"
	ActionAddPaymentAddress      = "addPaymentAddress"
	ActionAddRefundAddress       = "addRefundAddress"
	ActionAddFee                 = "addFee"
	ActionAddPaymentInstruction  = "addPaymentInstruction"
	ActionAddRefundInstruction   = "addRefundInstruction"
	ActionDeclareSentPayment     = "declareSentPayment"
	ActionDeclareSentRefund      = "declareSentRefund"
	ActionDeclareReceivedPayment = "declareReceivedPayment"
	ActionDeclareReceivedRefund  = "declareReceivedRefund"
	ActionApplyActionToPn        = "applyActionToPn"
)

// SaltBytes is the size of generated salts.
const SaltBytes = 8

var validate = validator.New()

// CreationParameters are the parameters of a creation action. Unset fields are omitted.
type CreationParameters struct {
	PaymentAddress  string   `validate:"omitempty,max=128"`
	RefundAddress   string   `validate:"omitempty,max=128"`
	Salt            string   `validate:"omitempty,hexadecimal"`
	FeeAddress      string   `validate:"required_with=FeeAmount"`
	FeeAmount       string   `validate:"omitempty,numeric"`
	Network         string   `validate:"omitempty"`
	AcceptedTokens  []string `validate:"omitempty,dive,required"`
	MaxRateTimespan uint64
	PaymentInfo     any
	RefundInfo      any

	// Recurring stream requests point at the first request of their series.
	MasterRequestID   string `validate:"required_with=RecurrenceNumber"`
	PreviousRequestID string `validate:"required_with=RecurrenceNumber"`
	RecurrenceNumber  uint64

	// SubNetworks holds the creation parameters of the sub networks of a meta payment network.
	SubNetworks map[model.PaymentNetworkID][]CreationParameters `validate:"omitempty,dive,dive"`
}

// FeeParameters are the parameters of addFee.
type FeeParameters struct {
	FeeAddress string `validate:"required"`
	FeeAmount  string `validate:"required,numeric"`
}

// DeclarationParameters are the parameters of the declarative actions.
type DeclarationParameters struct {
	Amount  string `validate:"required,numeric"`
	Note    string
	TxHash  string
	Network string
}

// Builder creates the actions of one payment network at one version.
type Builder struct {
	id      model.PaymentNetworkID
	version string
}

func NewBuilder(id model.PaymentNetworkID, version string) *Builder {
	return &Builder{id: id, version: version}
}

// ID returns the payment network the builder creates actions for.
func (b *Builder) ID() model.PaymentNetworkID {
	return b.id
}

// Version returns the extension version of the builder.
func (b *Builder) Version() string {
	return b.version
}

// Creation returns the creation action. Reference based networks get a random salt when none is given.
func (b *Builder) Creation(params CreationParameters) (model.Action, error) {
	if err := validate.Struct(params); err != nil {
		return model.Action{}, fmt.Errorf("invalid %s creation parameters: %w", b.id, err)
	}
	parameters, err := b.creationParameters(b.id, params)
	if err != nil {
		return model.Action{}, err
	}
	return model.Action{Action: ActionCreate, ID: b.id, Version: b.version, Parameters: parameters}, nil
}

func (b *Builder) creationParameters(id model.PaymentNetworkID, params CreationParameters) (map[string]any, error) {
	if params.Salt == "" && usesSalt(id) {
		salt, err := GenerateSalt()
		if err != nil {
			return nil, err
		}
		params.Salt = salt
	}

	out := make(map[string]any)
	setString(out, "paymentAddress", params.PaymentAddress)
	setString(out, "refundAddress", params.RefundAddress)
	setString(out, "salt", params.Salt)
	setString(out, "feeAddress", params.FeeAddress)
	setString(out, "feeAmount", params.FeeAmount)
	setString(out, "network", params.Network)
	if len(params.AcceptedTokens) > 0 {
		out["acceptedTokens"] = params.AcceptedTokens
	}
	if params.MaxRateTimespan > 0 {
		out["maxRateTimespan"] = params.MaxRateTimespan
	}
	setString(out, "masterRequestId", params.MasterRequestID)
	setString(out, "previousRequestId", params.PreviousRequestID)
	if params.RecurrenceNumber > 0 {
		out["recurrenceNumber"] = params.RecurrenceNumber
	}
	if params.PaymentInfo != nil {
		out["paymentInfo"] = params.PaymentInfo
	}
	if params.RefundInfo != nil {
		out["refundInfo"] = params.RefundInfo
	}

	if id == model.NetworkMeta {
		ids := make([]string, 0, len(params.SubNetworks))
		for subID := range params.SubNetworks {
			ids = append(ids, string(subID))
		}
		sort.Strings(ids)
		for _, subID := range ids {
			pnID := model.PaymentNetworkID(subID)
			if !model.IsMetaSubNetwork(pnID) {
				return nil, fmt.Errorf("%s is not supported for meta-pn detection", subID)
			}
			subs := make([]map[string]any, 0, len(params.SubNetworks[pnID]))
			for _, sub := range params.SubNetworks[pnID] {
				subParams, err := b.creationParameters(pnID, sub)
				if err != nil {
					return nil, err
				}
				subs = append(subs, subParams)
			}
			out[subID] = subs
		}
	}
	return out, nil
}

// AddPaymentAddress returns the addPaymentAddress action.
func (b *Builder) AddPaymentAddress(paymentAddress string) (model.Action, error) {
	return b.addressAction(ActionAddPaymentAddress, "paymentAddress", paymentAddress)
}

// AddRefundAddress returns the addRefundAddress action.
func (b *Builder) AddRefundAddress(refundAddress string) (model.Action, error) {
	return b.addressAction(ActionAddRefundAddress, "refundAddress", refundAddress)
}

func (b *Builder) addressAction(action, key, address string) (model.Action, error) {
	if err := validate.Var(address, "required"); err != nil {
		return model.Action{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b.action(action, map[string]any{key: address}), nil
}

// AddFee returns the addFee action.
func (b *Builder) AddFee(params FeeParameters) (model.Action, error) {
	if err := validate.Struct(params); err != nil {
		return model.Action{}, fmt.Errorf("invalid fee parameters: %w", err)
	}
	return b.action(ActionAddFee, map[string]any{
		"feeAddress": params.FeeAddress,
		"feeAmount":  params.FeeAmount,
	}), nil
}

// AddPaymentInfo returns the addPaymentInstruction action of declarative networks.
func (b *Builder) AddPaymentInfo(info any) (model.Action, error) {
	if info == nil {
		return model.Action{}, fmt.Errorf("payment info is required")
	}
	return b.action(ActionAddPaymentInstruction, map[string]any{"paymentInfo": info}), nil
}

// AddRefundInfo returns the addRefundInstruction action of declarative networks.
func (b *Builder) AddRefundInfo(info any) (model.Action, error) {
	if info == nil {
		return model.Action{}, fmt.Errorf("refund info is required")
	}
	return b.action(ActionAddRefundInstruction, map[string]any{"refundInfo": info}), nil
}

func (b *Builder) DeclareSentPayment(params DeclarationParameters) (model.Action, error) {
	return b.declaration(ActionDeclareSentPayment, params)
}

func (b *Builder) DeclareSentRefund(params DeclarationParameters) (model.Action, error) {
	return b.declaration(ActionDeclareSentRefund, params)
}

func (b *Builder) DeclareReceivedPayment(params DeclarationParameters) (model.Action, error) {
	return b.declaration(ActionDeclareReceivedPayment, params)
}

func (b *Builder) DeclareReceivedRefund(params DeclarationParameters) (model.Action, error) {
	return b.declaration(ActionDeclareReceivedRefund, params)
}

func (b *Builder) declaration(action string, params DeclarationParameters) (model.Action, error) {
	if err := validate.Struct(params); err != nil {
		return model.Action{}, fmt.Errorf("invalid %s parameters: %w", action, err)
	}
	parameters := map[string]any{"amount": params.Amount}
	setString(parameters, "note", params.Note)
	setString(parameters, "txHash", params.TxHash)
	setString(parameters, "network", params.Network)
	return b.action(action, parameters), nil
}

// ApplyActionToPn wraps a sub network action of a meta payment network.
func (b *Builder) ApplyActionToPn(pnIdentifier string, action model.Action) (model.Action, error) {
	if b.id != model.NetworkMeta {
		return model.Action{}, fmt.Errorf("%s is not a meta payment network", b.id)
	}
	if err := validate.Var(pnIdentifier, "required"); err != nil {
		return model.Action{}, fmt.Errorf("invalid pn identifier: %w", err)
	}
	if action.Action == "" {
		return model.Action{}, fmt.Errorf("sub network action is required")
	}
	return b.action(ActionApplyActionToPn, map[string]any{
		"pnIdentifier": pnIdentifier,
		"action":       action.Action,
		"parameters":   action.Parameters,
	}), nil
}

func (b *Builder) action(name string, parameters map[string]any) model.Action {
	return model.Action{Action: name, ID: b.id, Parameters: parameters}
}

// GenerateSalt returns SaltBytes random bytes, hex encoded.
func GenerateSalt() (string, error) {
	buf := make([]byte, SaltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func usesSalt(id model.PaymentNetworkID) bool {
	switch id {
	case model.NetworkERC20ProxyContract,
		model.NetworkERC20FeeProxyContract,
		model.NetworkETHFeeProxyContract,
		model.NetworkAnyToERC20Proxy,
		model.NetworkAnyToETHProxy,
		model.NetworkERC777Stream:
		return true
	default:
		return false
	}
}

func setString(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}
