package extract

import "testing"

func TestIsPlausibleNameAccepts(t *testing.T) {
	names := []string{
		"Jane Smith",
		"Mary Jo Baker",
		"John A. Smith-Jones",
		"Luis de la Cruz",
	}
	for _, name := range names {
		if !IsPlausibleName(name) {
			t.Errorf("IsPlausibleName(%q) = false, want true", name)
		}
	}
}

func TestIsPlausibleNameRejects(t *testing.T) {
	names := []string{
		"",
		"Jane",
		"Gourmet Kitchen",
		"Corner Lot",
		"New Price",
		"Two Car Garage",
		"J4ne Smith",
		"One Two Three Four Five",
		"Atlanta Realty Group",
		"Coldwell Banker",
		"Peachtree Street",
		"County Road",
	}
	for _, name := range names {
		if IsPlausibleName(name) {
			t.Errorf("IsPlausibleName(%q) = true, want false", name)
		}
	}
}

func TestIsPlausibleCompanyAccepts(t *testing.T) {
	companies := []string{
		"Peach State Realty",
		"RE/MAX Around Atlanta",
		"The Graham Seeby Group",
		"Coldwell Banker Residential",
		"Smith & Associates",
		"Compass Georgia",
		"eXp Realty of Atlanta",
	}
	for _, company := range companies {
		if !IsPlausibleCompany(company) {
			t.Errorf("IsPlausibleCompany(%q) = false, want true", company)
		}
	}
}

func TestIsPlausibleCompanyRejects(t *testing.T) {
	companies := []string{
		"",
		"Team",
		"Jane Smith",
		"Click here for Realty results",
		"Loading more homes",
		"undefined Realty",
		"Contact Coldwell Banker today",
	}
	for _, company := range companies {
		if IsPlausibleCompany(company) {
			t.Errorf("IsPlausibleCompany(%q) = true, want false", company)
		}
	}
}

func TestNameAndCompanyMutuallyExclusive(t *testing.T) {
	s := "Atlanta Realty Group"
	if !IsPlausibleCompany(s) {
		t.Fatalf("IsPlausibleCompany(%q) = false, want true", s)
	}
	if IsPlausibleName(s) {
		t.Fatalf("IsPlausibleName(%q) = true, want false", s)
	}
}
