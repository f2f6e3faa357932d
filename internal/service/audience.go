package service

import "github.com/noah-isme/contact-book-api/internal/models"

// AudienceFor computes what an identity can reach from a roster snapshot.
// Teachers reach every student in their classes. Parents reach their linked
// student and that student's class.
func AudienceFor(identity models.Identity, students []models.Student) models.Audience {
	audience := models.Audience{
		ReachableStudents: make(models.StringSet),
		ReachableClasses:  make(models.StringSet),
	}

	switch identity.Role {
	case models.RoleTeacher:
		for class := range identity.AssignedClasses {
			audience.ReachableClasses.Add(class)
		}
		for _, st := range students {
			if audience.ReachableClasses.Has(st.ClassTag) {
				audience.ReachableStudents.Add(st.StudentID)
			}
		}
	case models.RoleParent:
		for _, st := range students {
			if st.StudentID == identity.LinkedStudentID {
				audience.ReachableStudents.Add(st.StudentID)
				audience.ReachableClasses.Add(st.ClassTag)
				break
			}
		}
	}

	return audience
}
