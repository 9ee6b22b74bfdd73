// Package output provides structured output and exit-code errors for the
// shiftsheet CLI.
//
// # Printer
//
// Commands write through a Printer, which switches between JSON and styled
// human output:
//
//	printer := output.NewPrinter(cmd.OutOrStdout(), jsonFlag, output.IsTTY(cmd.OutOrStdout()))
//	printer.Section("Employees")
//	printer.AlignedTable(headers, rows, []output.Align{output.AlignLeft, output.AlignRight})
//	printer.TotalLine("Total", "12.5h")
//
// Styling uses lipgloss and is disabled when output is not a terminal or
// when --color never is given.
//
// # Exit codes
//
//	output.ExitSuccess     // 0
//	output.ExitUserError   // 1: bad flags, bad dates, unknown or ambiguous project
//	output.ExitSystemError // 2: QuickBooks Time or token store failures
//	output.ExitConflict    // 3: a stored token would be overwritten
//
// Errors built with NewUserError, NewSystemErrorWithCause and friends carry
// their code through wrapping; GetExitCode recovers it.
package output
