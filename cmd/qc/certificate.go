package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/qcyard/internal/certificate"
	"github.com/zulandar/qcyard/internal/models"
)

func newCertificateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "certificate",
		Aliases: []string{"cert"},
		Short:   "Quality certificate commands",
	}

	cmd.AddCommand(newCertificateIssueCmd())
	cmd.AddCommand(newCertificateSubmitCmd())
	cmd.AddCommand(newCertificateDecisionCmd("approve", true))
	cmd.AddCommand(newCertificateDecisionCmd("reject", false))
	cmd.AddCommand(newCertificateShowCmd())
	return cmd
}

func newCertificateIssueCmd() *cobra.Command {
	var (
		configPath string
		opts       certificate.IssueOpts
		certType   string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a certificate for a production order",
		Long: `Issues a certificate from every PASSED inspection of the order.

Without --customer-approval the certificate is approved immediately by the
issuer; otherwise it awaits the customer's decision.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = models.CertificateType(strings.ToUpper(certType))
			return runCertificateIssue(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().StringVar(&opts.ProductionOrderID, "order", "", "production order id (required)")
	cmd.Flags().StringVar(&certType, "type", "QUALITY", "certificate type (QUALITY, COMPLIANCE, TEST)")
	cmd.Flags().StringVar(&opts.IssuedBy, "issued-by", "", "issuer id (required)")
	cmd.Flags().BoolVar(&opts.CustomerApprovalRequired, "customer-approval", false, "require customer approval")
	cmd.MarkFlagRequired("order")
	cmd.MarkFlagRequired("issued-by")
	return cmd
}

func runCertificateIssue(cmd *cobra.Command, configPath string, opts certificate.IssueOpts) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cert, err := a.certificates.Issue(cmd.Context(), opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Issued certificate %s (%s)\n", cert.CertificateNumber, cert.ID)
	fmt.Fprintf(out, "Status: %s, valid until %s\n", cert.Status(time.Now()), cert.ValidUntil.Format("2006-01-02"))
	fmt.Fprintf(out, "Covers %d passed inspections\n", len(cert.InspectionIDs))
	return nil
}

func newCertificateSubmitCmd() *cobra.Command {
	var (
		configPath string
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Send a certificate to the customer for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCertificateSubmit(cmd, configPath, args[0], notes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().StringVar(&notes, "notes", "", "submission notes")
	return cmd
}

func runCertificateSubmit(cmd *cobra.Command, configPath, id, notes string) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cert, err := a.certificates.SubmitForApproval(cmd.Context(), id, notes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s submitted for customer approval\n", cert.CertificateNumber)
	return nil
}

func newCertificateDecisionCmd(use string, approved bool) *cobra.Command {
	var (
		configPath string
		by         string
		comments   string
	)

	short := "Record the customer's approval of a certificate"
	if !approved {
		short = "Record the customer's rejection of a certificate"
	}

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCertificateDecision(cmd, configPath, args[0], approved, by, comments)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	cmd.Flags().StringVar(&by, "by", "", "customer contact recording the decision (required)")
	cmd.Flags().StringVar(&comments, "comments", "", "decision comments")
	cmd.MarkFlagRequired("by")
	return cmd
}

func runCertificateDecision(cmd *cobra.Command, configPath, id string, approved bool, by, comments string) error {
	a, err := newApp(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cert, err := a.certificates.ProcessCustomerApproval(cmd.Context(), id, approved, by, comments)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s is now %s\n", cert.CertificateNumber, cert.Status(time.Now()))
	return nil
}

func newCertificateShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show certificate details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCertificateShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to QC config file")
	return cmd
}

func runCertificateShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	cert, err := certificate.NewService(certificate.Options{DB: gormDB}).Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	data := cert.Payload.Data()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Certificate:  %s (%s)\n", cert.CertificateNumber, cert.ID)
	fmt.Fprintf(out, "Type:         %s\n", cert.Type)
	fmt.Fprintf(out, "Order:        %s (%s, qty %d)\n", data.ProductDetails.OrderNumber, data.ProductDetails.CustomerName, data.ProductDetails.Quantity)
	fmt.Fprintf(out, "Status:       %s\n", cert.Status(time.Now()))
	fmt.Fprintf(out, "Customer:     %s\n", cert.CustomerApprovalStatus())
	fmt.Fprintf(out, "Issued:       %s by %s\n", cert.IssuedDate.Format("2006-01-02"), cert.IssuedBy)
	fmt.Fprintf(out, "Valid until:  %s\n", cert.ValidUntil.Format("2006-01-02"))
	fmt.Fprintf(out, "Approved by:  %s\n", orDash(cert.ApprovedBy))
	fmt.Fprintf(out, "Avg score:    %.2f over %d inspections\n", data.QualityResults.AverageScore, data.QualityResults.TotalInspections)
	stages := make([]string, len(data.QualityResults.PassedStages))
	for i, s := range data.QualityResults.PassedStages {
		stages[i] = string(s)
	}
	fmt.Fprintf(out, "Stages:       %s\n", joinOrDash(stages))
	fmt.Fprintf(out, "Standards:    %s\n", joinOrDash(data.ComplianceInfo.Standards))
	return nil
}
