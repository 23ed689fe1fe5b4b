package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/algocheckout/checkout"
	checkouthttp "github.com/algocheckout/checkout/http"
	"github.com/algocheckout/checkout/mechanisms/algorand"
)

var (
	createMerchant string
	createName     string
	createAmount   string
	createAsset    uint64
	createProgram  uint64
	createNote     string
	createTTL      int64
	createMethod   string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a checkout at the registry",
	Long: `Create a checkout at the configured registry and print the record.

The amount is given in display units and converted with the configured
asset decimals, so --amount 1.5 is 1500000 base units for a 6 decimal asset.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createMerchant, "merchant", "", "merchant address (required)")
	createCmd.Flags().StringVar(&createName, "name", "", "merchant display name")
	createCmd.Flags().StringVar(&createAmount, "amount", "", "amount in display units (required)")
	createCmd.Flags().Uint64Var(&createAsset, "asset", 0, "asset id")
	createCmd.Flags().Uint64Var(&createProgram, "program", 0, "checkout program id (contract settlement)")
	createCmd.Flags().StringVar(&createNote, "note", "", "payment note")
	createCmd.Flags().Int64Var(&createTTL, "ttl", 0, "seconds until expiry (registry default when 0)")
	createCmd.Flags().StringVar(&createMethod, "method", "", "settlement method: contract or direct")
	_ = createCmd.MarkFlagRequired("merchant")
	_ = createCmd.MarkFlagRequired("amount")
}

func runCreate(cmd *cobra.Command, args []string) error {
	amount, err := algorand.ParseAmount(createAmount, cfg.Checkout.AssetDecimals)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	req := checkouthttp.CreateCheckoutRequest{
		Method:           checkout.SettlementMethod(createMethod),
		MerchantAddress:  createMerchant,
		MerchantName:     createName,
		Amount:           amount,
		AssetID:          createAsset,
		Note:             createNote,
		ExpiresInSeconds: createTTL,
	}
	if createProgram != 0 {
		req.ProgramID = &createProgram
	}

	co, err := a.api.CreateCheckout(cmd.Context(), req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(co, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
