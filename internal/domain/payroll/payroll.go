package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
	"github.com/ledgerline/payroll-compliance-backend/internal/domain/values"
)

// Employee is the slice of an employee record the submission layer needs.
// Pay fields use decimal arithmetic; NI numbers are validated value objects.
type Employee struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Email         string          `json:"email,omitempty"`
	NINumber      string          `json:"ni_number,omitempty"`
	TaxCode       string          `json:"tax_code,omitempty"`
	NICategory    string          `json:"ni_category,omitempty"`
	StartDate     *values.Time    `json:"start_date,omitempty"`
	LeavingDate   *values.Time    `json:"leaving_date,omitempty"`
	AnnualSalary  decimal.Decimal `json:"annual_salary"`
	IsDirector    bool            `json:"is_director"`
	PayrollActive bool            `json:"payroll_active"`
}

// ValidNINumber parses the employee's NI number, failing if absent or malformed
func (e *Employee) ValidNINumber() (values.NINumber, error) {
	if e.NINumber == "" {
		return values.NINumber{}, errors.NewValidationError("MISSING_NI_NUMBER",
			fmt.Sprintf("employee %s has no National Insurance number", e.ID))
	}
	return values.NewNINumber(e.NINumber)
}

// FullName returns the display name
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// RecordStatus is the payroll record approval state
type RecordStatus string

const (
	RecordDraft     RecordStatus = "draft"
	RecordPending   RecordStatus = "pending_approval"
	RecordApproved  RecordStatus = "approved"
	RecordSubmitted RecordStatus = "submitted"
	RecordFailed    RecordStatus = "submission_failed"
)

// SubmissionInfo records the outcome of an RTI submission against a record
type SubmissionInfo struct {
	Submitted    bool        `json:"submitted"`
	SubmittedAt  values.Time `json:"submitted_at"`
	SubmittedBy  string      `json:"submitted_by,omitempty"`
	SubmissionID string      `json:"submission_id,omitempty"`
	Status       string      `json:"status"`
	FailureCode  string      `json:"failure_code,omitempty"`
}

// Record is one employee's pay for one tax period
type Record struct {
	ID              string           `json:"id"`
	CompanyID       string           `json:"company_id"`
	EmployeeID      string           `json:"employee_id"`
	TaxPeriod       values.TaxPeriod `json:"tax_period"`
	PeriodStartDate *values.Time     `json:"period_start_date,omitempty"`
	PeriodEndDate   *values.Time     `json:"period_end_date,omitempty"`
	PaymentDate     *values.Time     `json:"payment_date,omitempty"`
	GrossPay        decimal.Decimal  `json:"gross_pay"`
	TaxablePay      decimal.Decimal  `json:"taxable_pay"`
	IncomeTax       decimal.Decimal  `json:"income_tax"`
	EmployeeNIC     decimal.Decimal  `json:"employee_nic"`
	EmployerNIC     decimal.Decimal  `json:"employer_nic"`
	PensionEmployee decimal.Decimal  `json:"pension_employee"`
	PensionEmployer decimal.Decimal  `json:"pension_employer"`
	StudentLoan     decimal.Decimal  `json:"student_loan"`
	NetPay          decimal.Decimal  `json:"net_pay"`
	Status          RecordStatus     `json:"status"`
	SubmittedToHMRC *SubmissionInfo  `json:"submitted_to_hmrc,omitempty"`
	CreatedAt       values.Time      `json:"created_at"`
	UpdatedAt       values.Time      `json:"updated_at"`
}

// IsApproved reports whether the record may be submitted
func (r *Record) IsApproved() bool {
	return r.Status == RecordApproved
}

// Validate checks the record's internal consistency before submission
func (r *Record) Validate() error {
	if r.EmployeeID == "" {
		return errors.NewValidationError("MISSING_EMPLOYEE_ID",
			fmt.Sprintf("payroll record %s has no employee reference", r.ID))
	}
	if r.GrossPay.IsNegative() {
		return errors.NewValidationError("NEGATIVE_GROSS_PAY",
			fmt.Sprintf("payroll record %s has negative gross pay", r.ID))
	}
	if r.IncomeTax.IsNegative() || r.EmployeeNIC.IsNegative() || r.EmployerNIC.IsNegative() {
		return errors.NewValidationError("NEGATIVE_DEDUCTION",
			fmt.Sprintf("payroll record %s has a negative statutory deduction", r.ID))
	}
	if r.NetPay.GreaterThan(r.GrossPay) {
		return errors.NewValidationError("NET_EXCEEDS_GROSS",
			fmt.Sprintf("payroll record %s net pay exceeds gross pay", r.ID))
	}
	return nil
}

// FPSEmployeeEntry is one employee line in a Full Payment Submission
type FPSEmployeeEntry struct {
	EmployeeID  string          `json:"employee_id"`
	NINumber    string          `json:"ni_number"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	TaxCode     string          `json:"tax_code,omitempty"`
	NICategory  string          `json:"ni_category,omitempty"`
	GrossPay    decimal.Decimal `json:"gross_pay"`
	TaxablePay  decimal.Decimal `json:"taxable_pay"`
	IncomeTax   decimal.Decimal `json:"income_tax"`
	EmployeeNIC decimal.Decimal `json:"employee_nic"`
	EmployerNIC decimal.Decimal `json:"employer_nic"`
	StudentLoan decimal.Decimal `json:"student_loan"`
	NetPay      decimal.Decimal `json:"net_pay"`
}

// FPSSubmission is the Full Payment Submission payload handed to the HMRC client
type FPSSubmission struct {
	CompanyID      string             `json:"company_id"`
	PAYEReference  string             `json:"paye_reference"`
	AccountsOffice string             `json:"accounts_office_reference"`
	TaxPeriod      values.TaxPeriod   `json:"tax_period"`
	PaymentDate    values.Time        `json:"payment_date"`
	Employees      []FPSEmployeeEntry `json:"employees"`
	TotalGrossPay  decimal.Decimal    `json:"total_gross_pay"`
	TotalIncomeTax decimal.Decimal    `json:"total_income_tax"`
	TotalNIC       decimal.Decimal    `json:"total_nic"`
}

// Validate checks the submission payload is complete
func (s *FPSSubmission) Validate() error {
	if _, err := values.NewPAYEReference(s.PAYEReference); err != nil {
		return err
	}
	if s.AccountsOffice == "" {
		return errors.NewValidationError("MISSING_ACCOUNTS_OFFICE",
			"accounts office reference is required")
	}
	if len(s.Employees) == 0 {
		return errors.NewValidationError("EMPTY_SUBMISSION",
			"a full payment submission must contain at least one employee")
	}
	return nil
}

// EPSSubmission is the Employer Payment Summary payload
type EPSSubmission struct {
	CompanyID           string           `json:"company_id"`
	PAYEReference       string           `json:"paye_reference"`
	AccountsOffice      string           `json:"accounts_office_reference"`
	TaxPeriod           values.TaxPeriod `json:"tax_period"`
	NoPaymentForPeriod  bool             `json:"no_payment_for_period"`
	EmploymentAllowance bool             `json:"employment_allowance"`
	SMPRecovered        decimal.Decimal  `json:"smp_recovered"`
	CISDeductions       decimal.Decimal  `json:"cis_deductions"`
}

// Validate checks the summary payload is complete
func (s *EPSSubmission) Validate() error {
	if _, err := values.NewPAYEReference(s.PAYEReference); err != nil {
		return err
	}
	if s.AccountsOffice == "" {
		return errors.NewValidationError("MISSING_ACCOUNTS_OFFICE",
			"accounts office reference is required")
	}
	return nil
}

// BuildFPS assembles a submission from validated payroll record and employee
// pairs. Pairs must already share a single tax period; totals are computed
// here so the payload and the records can never disagree.
func BuildFPS(companyID, payeRef, accountsOffice string, period values.TaxPeriod, paymentDate values.Time, pairs []RecordEmployeePair) (*FPSSubmission, error) {
	sub := &FPSSubmission{
		CompanyID:      companyID,
		PAYEReference:  payeRef,
		AccountsOffice: accountsOffice,
		TaxPeriod:      period,
		PaymentDate:    paymentDate,
		TotalGrossPay:  decimal.Zero,
		TotalIncomeTax: decimal.Zero,
		TotalNIC:       decimal.Zero,
	}

	for _, p := range pairs {
		ni, err := p.Employee.ValidNINumber()
		if err != nil {
			return nil, err
		}
		sub.Employees = append(sub.Employees, FPSEmployeeEntry{
			EmployeeID:  p.Employee.ID,
			NINumber:    ni.String(),
			FirstName:   p.Employee.FirstName,
			LastName:    p.Employee.LastName,
			TaxCode:     p.Employee.TaxCode,
			NICategory:  p.Employee.NICategory,
			GrossPay:    p.Record.GrossPay,
			TaxablePay:  p.Record.TaxablePay,
			IncomeTax:   p.Record.IncomeTax,
			EmployeeNIC: p.Record.EmployeeNIC,
			EmployerNIC: p.Record.EmployerNIC,
			StudentLoan: p.Record.StudentLoan,
			NetPay:      p.Record.NetPay,
		})
		sub.TotalGrossPay = sub.TotalGrossPay.Add(p.Record.GrossPay)
		sub.TotalIncomeTax = sub.TotalIncomeTax.Add(p.Record.IncomeTax)
		sub.TotalNIC = sub.TotalNIC.Add(p.Record.EmployeeNIC).Add(p.Record.EmployerNIC)
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

// RecordEmployeePair binds a payroll record to its employee for submission
type RecordEmployeePair struct {
	Record   *Record
	Employee *Employee
}
