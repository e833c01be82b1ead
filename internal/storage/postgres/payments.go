package postgres

import (
	"context"
	"fmt"
	"strings"

	"paymentScope/internal/hasura"
)

// GetPaymentsByReference reads the payments table the payments index is served from.
// It filters the same way as the Hasura client.
func (s *Store) GetPaymentsByReference(ctx context.Context, query hasura.PaymentsQuery) ([]hasura.Payment, error) {
	sql, args := buildPaymentsSQL(query)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := []hasura.Payment{}
	for rows.Next() {
		var (
			p                             hasura.Payment
			blockNumber, timestamp        int64
			amount, feeAmount             string
			energyUsed, energyFee, netFee string
		)
		if err := rows.Scan(
			&p.ID,
			&p.Chain,
			&p.TxHash,
			&blockNumber,
			&timestamp,
			&p.ContractAddress,
			&p.TokenAddress,
			&p.FromAddress,
			&p.ToAddress,
			&amount,
			&feeAmount,
			&p.FeeAddress,
			&p.PaymentReference,
			&energyUsed,
			&energyFee,
			&netFee,
		); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.BlockNumber = uint64(blockNumber)
		p.Timestamp = uint64(timestamp)
		p.Amount = hasura.Amount(amount)
		p.FeeAmount = hasura.Amount(feeAmount)
		p.EnergyUsed = hasura.Amount(energyUsed)
		p.EnergyFee = hasura.Amount(energyFee)
		p.NetFee = hasura.Amount(netFee)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read payments: %w", err)
	}
	return payments, nil
}

func buildPaymentsSQL(query hasura.PaymentsQuery) (string, []any) {
	filters := []string{"payment_reference = $1", "to_address = $2"}
	args := []any{query.PaymentReference, query.ToAddress}
	add := func(clause, value string) {
		args = append(args, value)
		filters = append(filters, fmt.Sprintf(clause, len(args)))
	}
	if query.Chain != "" {
		add("chain = $%d", query.Chain)
	}
	if query.TokenAddress != "" {
		add("token_address ILIKE $%d", query.TokenAddress)
	}
	if query.ContractAddress != "" {
		add("contract_address ILIKE $%d", query.ContractAddress)
	}

	sql := `SELECT
	id::text, chain, tx_hash, block_number, timestamp,
	contract_address, COALESCE(token_address, ''), from_address, to_address,
	amount::text, COALESCE(fee_amount::text, ''), COALESCE(fee_address, ''), payment_reference,
	COALESCE(energy_used::text, ''), COALESCE(energy_fee::text, ''), COALESCE(net_fee::text, '')
FROM payments
WHERE ` + strings.Join(filters, " AND ") + `
ORDER BY timestamp ASC`
	return sql, args
}
