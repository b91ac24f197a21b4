package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docmapper/internal/domain"
	"docmapper/internal/feature/staff"
)

func newStaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Browse the employee directory and record logins",
	}

	cmd.AddCommand(newStaffListCmd())
	cmd.AddCommand(newStaffShowCmd())
	cmd.AddCommand(newStaffRolesCmd())
	cmd.AddCommand(newStaffLoginCmd())
	return cmd
}

func newStaffListCmd() *cobra.Command {
	var (
		department string
		manager    string
		page       int
		size       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees by department, by manager, or all active ones",
		Long: `List one page of employees ordered by name. With --department only that
department is listed, with --manager only that manager's reports, and with
neither every active employee.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if department != "" && manager != "" {
				return fmt.Errorf("--department and --manager are mutually exclusive")
			}

			return withStaff(func(ctx context.Context, rt *app, dir *staff.Directory) error {
				var (
					members []staff.Member
					err     error
				)
				switch {
				case department != "":
					members, err = dir.ByDepartment(ctx, department, page, size)
				case manager != "":
					members, err = dir.Reports(ctx, manager, page, size)
				default:
					members, err = dir.Active(ctx, page, size)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, m := range members {
					printMember(out, m)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&department, "department", "", "department to list")
	cmd.Flags().StringVar(&manager, "manager", "", "manager _id whose reports to list")
	cmd.Flags().IntVar(&page, "page", 1, "1-based page number")
	cmd.Flags().IntVar(&size, "size", staff.DefaultPageSize, "page size")
	return cmd
}

func newStaffShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID|EMAIL",
		Short: "Show one employee by _id or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStaff(func(ctx context.Context, rt *app, _ *staff.Directory) error {
				repo := domain.NewEmployeeRepository(rt.registry.Employees)

				var (
					employee domain.Employee
					err      error
				)
				if primitive.IsValidObjectID(args[0]) {
					employee, err = repo.GetByID(ctx, args[0])
				} else {
					employee, err = repo.GetByEmail(ctx, args[0])
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "id: %s\n", employee.ID.Hex())
				fmt.Fprintf(out, "employee_id: %s\n", employee.EmployeeID)
				fmt.Fprintf(out, "name: %s\n", employee.FullName())
				fmt.Fprintf(out, "email: %s\n", employee.BasicInfo.Email)
				fmt.Fprintf(out, "department: %s\n", employee.Employment.Department)
				fmt.Fprintf(out, "status: %s\n", employee.Employment.Status)
				fmt.Fprintf(out, "role: %s\n", employee.Role)
				fmt.Fprintf(out, "locked: %t\n", employee.IsLocked)
				return nil
			})
		},
	}
}

func newStaffRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List active roles by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStaff(func(ctx context.Context, rt *app, _ *staff.Directory) error {
				roles, err := domain.NewRoleRepository(rt.registry.Roles).List(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, role := range roles {
					fmt.Fprintf(out, "%d\t%s\t%s\n", role.Priority, role.Name, role.DisplayName)
				}
				return nil
			})
		},
	}
}

func newStaffLoginCmd() *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "login ID",
		Short: "Record a successful or failed login for an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStaff(func(ctx context.Context, rt *app, dir *staff.Directory) error {
				out := cmd.OutOrStdout()

				if failed {
					locked, err := dir.RecordFailedLogin(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "locked: %t\n", locked)
					return nil
				}

				member, err := dir.RecordLogin(ctx, args[0])
				if err != nil {
					return err
				}
				printMember(out, member)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "record a failed attempt instead")
	return cmd
}

// withStaff connects, builds the directory and runs fn under staffTimeout.
func withStaff(fn func(ctx context.Context, rt *app, dir *staff.Directory) error) error {
	rt, err := connect()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), staffTimeout)
	defer cancel()

	return fn(ctx, rt, staff.NewDirectory(rt.registry, rt.logger))
}

func printMember(out io.Writer, m staff.Member) {
	roles := make([]string, 0, len(m.Roles))
	for _, role := range m.Roles {
		if role.Name == "" {
			roles = append(roles, role.ID.Hex())
			continue
		}
		roles = append(roles, role.Name)
	}

	manager := "-"
	if m.Manager != nil {
		manager = m.Manager.FullName
	}

	fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\n",
		m.EmployeeID, m.FullName, m.Email, m.Department, strings.Join(roles, ","), manager)
}
